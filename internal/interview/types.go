package interview

import "time"

// Status tracks the durable lifecycle of an interview record.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Response is one question/answer pair in an interview transcript.
type Response struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is the durable interview artifact. Records are created when an
// interview is requested and kept forever as the audit trail.
type Record struct {
	ID          string     `json:"id"`
	PhoneNumber string     `json:"phone_number"`
	Topic       string     `json:"topic"`
	Status      Status     `json:"status"`
	CallID      string     `json:"call_id,omitempty"`
	Responses   []Response `json:"responses"`
	CreatedAt   time.Time  `json:"created_at"`
}
