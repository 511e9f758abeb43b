package reminder

import (
	"sort"
	"sync"
)

// Registry maps a chat to the jobs it created, in creation order. It holds
// references only; the scheduler owns the jobs and keeps both in sync.
type Registry struct {
	mu     sync.RWMutex
	byChat map[int64][]*Job
	n      int
}

func NewRegistry() *Registry {
	return &Registry{byChat: map[int64][]*Job{}}
}

func (r *Registry) Append(chatID int64, j *Job) {
	if j == nil {
		return
	}
	r.mu.Lock()
	r.byChat[chatID] = append(r.byChat[chatID], j)
	r.n++
	r.mu.Unlock()
}

// Jobs returns a copy of the chat's job list.
func (r *Registry) Jobs(chatID int64) []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Job(nil), r.byChat[chatID]...)
}

// Chats returns every chat with at least one job, sorted.
func (r *Registry) Chats() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.byChat))
	for id := range r.byChat {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}
