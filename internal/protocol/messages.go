package protocol

import "time"

// InterviewUpdate is broadcast on the bus every time an answer is paired with
// its question and persisted.
type InterviewUpdate struct {
	InterviewID string    `json:"interview_id"`
	CallID      string    `json:"call_id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Sequence    int       `json:"sequence"`
	Timestamp   time.Time `json:"timestamp"`
}

// InterviewLifecycle marks an interview reaching a terminal state.
type InterviewLifecycle struct {
	InterviewID string    `json:"interview_id"`
	CallID      string    `json:"call_id"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectInterviewUpdate = "interview.update.v1"
	SubjectInterviewEnded  = "interview.ended.v1"
)

// Client message types exchanged over the WebSocket gateway.
const (
	TypeStartInterview   = "START_INTERVIEW"
	TypeInterviewStarted = "INTERVIEW_STARTED"
	TypeInterviewUpdate  = "INTERVIEW_UPDATE"
	TypeError            = "ERROR"
)

// ClientEnvelope is the wire shape of every gateway message; fields beyond
// Type are populated per message type.
type ClientEnvelope struct {
	Type        string `json:"type"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Topic       string `json:"topic,omitempty"`
	InterviewID string `json:"interviewId,omitempty"`
	CallID      string `json:"callId,omitempty"`
	Question    string `json:"question,omitempty"`
	Answer      string `json:"answer,omitempty"`
	Message     string `json:"message,omitempty"`
}
