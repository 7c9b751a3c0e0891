package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when no durable record exists for an
// interview or call identifier.
var ErrRecordNotFound = errors.New("interview record not found")

// Persistence is the durable storage collaborator the manager delegates to.
type Persistence interface {
	CreateInterview(ctx context.Context, rec Record) error
	AttachCall(ctx context.Context, interviewID, callID string) error
	AppendResponse(ctx context.Context, interviewID string, resp Response) error
	UpdateStatus(ctx context.Context, interviewID string, status Status) error
	GetInterview(ctx context.Context, interviewID string) (Record, error)
	GetByCallID(ctx context.Context, callID string) (Record, error)
}

// Manager owns the interview record lifecycle. Storage failures propagate to
// the caller; the durable record is the long-term artifact of record and must
// never be silently dropped.
type Manager struct {
	store Persistence
	log   *slog.Logger
	clock func() time.Time
}

func NewManager(store Persistence, log *slog.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log.With(slog.String("component", "interview-manager")),
		clock: time.Now,
	}
}

// CreateRecord persists a new interview in the starting state.
func (m *Manager) CreateRecord(ctx context.Context, phoneNumber, topic string) (Record, error) {
	rec := Record{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		Topic:       topic,
		Status:      StatusStarting,
		CreatedAt:   m.clock().UTC(),
	}
	if err := m.store.CreateInterview(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create interview record: %w", err)
	}
	m.log.Info("interview record created",
		slog.String("interview_id", rec.ID),
		slog.String("topic", topic))
	return rec, nil
}

// AttachCall binds a placed call to its record and moves it to in_progress.
func (m *Manager) AttachCall(ctx context.Context, interviewID, callID string) error {
	if err := m.store.AttachCall(ctx, interviewID, callID); err != nil {
		return fmt.Errorf("attach call %s: %w", callID, err)
	}
	return nil
}

// AppendResponse appends one question/answer pair, preserving order.
func (m *Manager) AppendResponse(ctx context.Context, interviewID, question, answer string) error {
	resp := Response{Question: question, Answer: answer, CreatedAt: m.clock().UTC()}
	if err := m.store.AppendResponse(ctx, interviewID, resp); err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

// Finalize records the terminal outcome of an interview.
func (m *Manager) Finalize(ctx context.Context, interviewID string, outcome Status) error {
	if !outcome.Terminal() {
		return fmt.Errorf("finalize with non-terminal status %q", outcome)
	}
	if err := m.store.UpdateStatus(ctx, interviewID, outcome); err != nil {
		return fmt.Errorf("finalize interview: %w", err)
	}
	m.log.Info("interview finalized",
		slog.String("interview_id", interviewID),
		slog.String("status", string(outcome)))
	return nil
}

// Get returns the full record including its response transcript.
func (m *Manager) Get(ctx context.Context, interviewID string) (Record, error) {
	return m.store.GetInterview(ctx, interviewID)
}

// GetByCallID resolves the record owning a call.
func (m *Manager) GetByCallID(ctx context.Context, callID string) (Record, error) {
	return m.store.GetByCallID(ctx, callID)
}
