package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/flow"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
	"github.com/phonescreen-labs/phonescreen-core/internal/question"
	"github.com/phonescreen-labs/phonescreen-core/internal/session"
)

type nopNotifier struct{}

func (nopNotifier) InterviewUpdate(protocol.InterviewUpdate)   {}
func (nopNotifier) InterviewEnded(protocol.InterviewLifecycle) {}

type memoryRecords struct {
	mu     sync.Mutex
	byCall map[string]*interview.Record
}

func (m *memoryRecords) GetByCallID(_ context.Context, callID string) (interview.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byCall[callID]
	if !ok {
		return interview.Record{}, interview.ErrRecordNotFound
	}
	return *rec, nil
}

func (m *memoryRecords) AppendResponse(_ context.Context, interviewID, q, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byCall {
		if rec.ID == interviewID {
			rec.Responses = append(rec.Responses, interview.Response{Question: q, Answer: a})
			return nil
		}
	}
	return interview.ErrRecordNotFound
}

func (m *memoryRecords) Finalize(_ context.Context, interviewID string, outcome interview.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byCall {
		if rec.ID == interviewID {
			rec.Status = outcome
			return nil
		}
	}
	return interview.ErrRecordNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Default()
	sessions := session.NewStore()
	store := &memoryRecords{byCall: map[string]*interview.Record{
		"CA1": {ID: "iv-1", Topic: "go", Status: interview.StatusInProgress, CallID: "CA1"},
	}}
	ctrl := flow.NewController(cfg.Interview, cfg.Question, sessions, store, question.NewMockGenerator(), nopNotifier{}, logger)
	mux := http.NewServeMux()
	NewHandler(ctrl, logger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sessions
}

func postForm(t *testing.T, url string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(url, form)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestVoiceWebhookReturnsScript(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := postForm(t, srv.URL+"/webhooks/voice", url.Values{"CallSid": {"CA1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if !strings.Contains(body, "<Response>") || !strings.Contains(body, "<Record") {
		t.Fatalf("unexpected script: %s", body)
	}
}

func TestWebhookRejectsMissingCallSid(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := postForm(t, srv.URL+"/webhooks/voice", url.Values{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNotificationWebhooksAcknowledge(t *testing.T) {
	srv, sessions := newTestServer(t)

	// Unknown call: both fire-and-forget webhooks must still return 200
	// and leave no session behind.
	resp, _ := postForm(t, srv.URL+"/webhooks/transcription", url.Values{
		"CallSid":           {"CA-unknown"},
		"TranscriptionText": {"hello"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transcription ack status %d", resp.StatusCode)
	}
	resp, _ = postForm(t, srv.URL+"/webhooks/status", url.Values{
		"CallSid":    {"CA-unknown"},
		"CallStatus": {"completed"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status ack status %d", resp.StatusCode)
	}
	if sessions.Len() != 0 {
		t.Fatalf("unknown-call webhooks created sessions: %d", sessions.Len())
	}
}

func TestAdvanceRedirectsMidInterview(t *testing.T) {
	srv, _ := newTestServer(t)
	postForm(t, srv.URL+"/webhooks/voice", url.Values{"CallSid": {"CA1"}})
	resp, body := postForm(t, srv.URL+"/webhooks/advance", url.Values{"CallSid": {"CA1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<Redirect>/webhooks/voice</Redirect>") {
		t.Fatalf("expected redirect back to voice turn: %s", body)
	}
}
