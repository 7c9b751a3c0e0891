package interview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakePersistence struct {
	records map[string]*Record
	failAll bool
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{records: make(map[string]*Record)}
}

var errStorage = errors.New("storage unavailable")

func (f *fakePersistence) CreateInterview(_ context.Context, rec Record) error {
	if f.failAll {
		return errStorage
	}
	f.records[rec.ID] = &rec
	return nil
}

func (f *fakePersistence) AttachCall(_ context.Context, interviewID, callID string) error {
	if f.failAll {
		return errStorage
	}
	rec, ok := f.records[interviewID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.CallID = callID
	rec.Status = StatusInProgress
	return nil
}

func (f *fakePersistence) AppendResponse(_ context.Context, interviewID string, resp Response) error {
	if f.failAll {
		return errStorage
	}
	rec, ok := f.records[interviewID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Responses = append(rec.Responses, resp)
	return nil
}

func (f *fakePersistence) UpdateStatus(_ context.Context, interviewID string, status Status) error {
	if f.failAll {
		return errStorage
	}
	rec, ok := f.records[interviewID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = status
	return nil
}

func (f *fakePersistence) GetInterview(_ context.Context, interviewID string) (Record, error) {
	rec, ok := f.records[interviewID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *rec, nil
}

func (f *fakePersistence) GetByCallID(_ context.Context, callID string) (Record, error) {
	for _, rec := range f.records {
		if rec.CallID == callID {
			return *rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakePersistence()
	mgr := NewManager(store, newTestLogger())

	rec, err := mgr.CreateRecord(ctx, "+14155552671", "backend engineering")
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if rec.Status != StatusStarting {
		t.Fatalf("expected starting status, got %s", rec.Status)
	}
	if rec.ID == "" {
		t.Fatal("expected generated record id")
	}

	if err := mgr.AttachCall(ctx, rec.ID, "CA123"); err != nil {
		t.Fatalf("attach call: %v", err)
	}
	got, err := mgr.GetByCallID(ctx, "CA123")
	if err != nil {
		t.Fatalf("get by call id: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("expected in_progress after attach, got %s", got.Status)
	}

	if err := mgr.AppendResponse(ctx, rec.ID, "Q1", "A1"); err != nil {
		t.Fatalf("append response: %v", err)
	}
	if err := mgr.AppendResponse(ctx, rec.ID, "Q2", "A2"); err != nil {
		t.Fatalf("append response: %v", err)
	}
	if err := mgr.Finalize(ctx, rec.ID, StatusCompleted); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err = mgr.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(got.Responses) != 2 || got.Responses[0].Question != "Q1" || got.Responses[1].Answer != "A2" {
		t.Fatalf("unexpected transcript: %+v", got.Responses)
	}
}

func TestFinalizeRejectsNonTerminal(t *testing.T) {
	mgr := NewManager(newFakePersistence(), newTestLogger())
	if err := mgr.Finalize(context.Background(), "iv-1", StatusInProgress); err == nil {
		t.Fatal("expected error finalizing with non-terminal status")
	}
}

func TestStorageFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	store := newFakePersistence()
	store.failAll = true
	mgr := NewManager(store, newTestLogger())

	if _, err := mgr.CreateRecord(ctx, "+14155552671", "topic"); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
	if err := mgr.AppendResponse(ctx, "iv-1", "Q", "A"); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
}
