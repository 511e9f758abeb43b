package notifier

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeFormat renders "Sent at" like 2026-10-14 08:00:00+07:00.
const DefaultTimeFormat = "2006-01-02 15:04:05.999999-07:00"

type Config struct {
	Timezone    string // IANA TZ used to render "Sent at"; default Asia/Jakarta
	TimeFormat  string
	RatePerSec  int
	HistorySize int
}

// Sender is the chat side of a delivery.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

const (
	StepChat    = "chat"
	StepPublish = "publish"
)

// DeliveryError reports the failure of one delivery step.
type DeliveryError struct {
	Step   string
	JobID  string
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s (job %s, chat %d): %v", e.Step, e.JobID, e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DeliveryEvent is the payload of reminder.delivered and
// reminder.delivery_failed bus events.
type DeliveryEvent struct {
	JobID    string        `json:"job_id"`
	ChatID   int64         `json:"chat_id"`
	Kind     string        `json:"kind"`
	FiredAt  time.Time     `json:"fired_at"`
	ChatOK   bool          `json:"chat_ok"`
	TopicOK  bool          `json:"topic_ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type HistoryItem struct {
	At      time.Time `json:"at"`
	JobID   string    `json:"job_id"`
	ChatID  int64     `json:"chat_id"`
	ChatOK  bool      `json:"chat_ok"`
	TopicOK bool      `json:"topic_ok"`
}
