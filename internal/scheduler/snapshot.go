package scheduler

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	loc := s.loc
	n := len(s.jobs)
	workers := s.cfg.Workers
	running := s.sup != nil
	s.mu.Unlock()

	return Snapshot{
		Location: loc.String(),
		Jobs:     n,
		Chats:    len(s.reg.Chats()),
		Workers:  workers,
		QueueLen: len(s.queue),
		QueueCap: cap(s.queue),
		Fired:    s.fired.Load(),
		Dropped:  s.dropped.Load(),
		Skipped:  s.skipped.Load(),
		Failed:   s.failed.Load(),
		Running:  running,
	}
}
