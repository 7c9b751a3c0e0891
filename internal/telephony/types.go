package telephony

import (
	"context"
	"fmt"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
)

// CallStatus mirrors the provider's call lifecycle statuses as delivered on
// status webhooks.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusAnswered   CallStatus = "answered"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusBusy       CallStatus = "busy"
	StatusFailed     CallStatus = "failed"
	StatusNoAnswer   CallStatus = "no-answer"
	StatusCanceled   CallStatus = "canceled"
)

// Terminal reports whether the provider considers the call finished.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

// Successful reports whether a terminal status counts as a normal hangup.
func (s CallStatus) Successful() bool {
	return s == StatusCompleted
}

// PlaceCallRequest carries everything the provider needs to dial out.
type PlaceCallRequest struct {
	To        string
	VoiceURL  string
	StatusURL string
}

// Provider is the outbound telephony collaborator. It owns dialing,
// text-to-speech, answer recording and transcription; this process only sees
// its webhooks.
type Provider interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (callID string, err error)
}

// New builds the provider selected by config.
func New(cfg config.TelephonyConfig) (Provider, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockProvider(), nil
	case "rest":
		return NewRESTProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown telephony mode %q", cfg.Mode)
	}
}
