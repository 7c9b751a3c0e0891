package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
	"github.com/phonescreen-labs/phonescreen-core/internal/question"
	"github.com/phonescreen-labs/phonescreen-core/internal/session"
	"github.com/phonescreen-labs/phonescreen-core/internal/telephony"
)

// answers longer than this are cut off by the provider
const answerMaxSeconds = 60

// RecordManager is the slice of the interview record manager the controller
// needs.
type RecordManager interface {
	GetByCallID(ctx context.Context, callID string) (interview.Record, error)
	AppendResponse(ctx context.Context, interviewID, question, answer string) error
	Finalize(ctx context.Context, interviewID string, outcome interview.Status) error
}

// Notifier receives interview progress for fan-out to observers. Delivery is
// fire-and-forget from the controller's point of view.
type Notifier interface {
	InterviewUpdate(update protocol.InterviewUpdate)
	InterviewEnded(ev protocol.InterviewLifecycle)
}

// Paths are the webhook URLs handed to the provider inside voice scripts.
type Paths struct {
	Voice         string
	Advance       string
	Transcription string
}

func DefaultPaths() Paths {
	return Paths{
		Voice:         "/webhooks/voice",
		Advance:       "/webhooks/advance",
		Transcription: "/webhooks/transcription",
	}
}

// Controller drives the per-call interview state machine. Each provider
// webhook type maps to one method; voice-turn and advance must always come
// back with a well-formed voice script, transcription and call-status are
// fire-and-forget.
type Controller struct {
	cfg      config.InterviewConfig
	qcfg     config.QuestionConfig
	sessions *session.Store
	records  RecordManager
	gen      question.Generator
	notifier Notifier
	paths    Paths
	log      *slog.Logger

	completedCount metric.Int64Counter
	questionCount  metric.Int64Counter
}

func NewController(cfg config.InterviewConfig, qcfg config.QuestionConfig, sessions *session.Store, records RecordManager, gen question.Generator, notifier Notifier, log *slog.Logger) *Controller {
	meter := otel.Meter("phonescreen/flow")
	completed, _ := meter.Int64Counter("interviews_finished_total",
		metric.WithDescription("Interviews reaching a terminal state, by outcome"))
	questions, _ := meter.Int64Counter("questions_asked_total",
		metric.WithDescription("Questions spoken to candidates"))
	return &Controller{
		cfg:            cfg,
		qcfg:           qcfg,
		sessions:       sessions,
		records:        records,
		gen:            gen,
		notifier:       notifier,
		paths:          DefaultPaths(),
		log:            log.With(slog.String("component", "flow")),
		completedCount: completed,
		questionCount:  questions,
	}
}

// VoiceTurn answers the provider's "what do I say next" request. The first
// turn of a call greets the candidate; every turn asks the next generated
// question and starts a transcribed recording.
func (c *Controller) VoiceTurn(ctx context.Context, callID string) *telephony.VoiceScript {
	s, ok := c.sessions.Get(callID)
	var topic string
	if !ok {
		rec, err := c.records.GetByCallID(ctx, callID)
		if err != nil {
			c.log.Error("voice turn for call without record",
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
			return c.apologyScript()
		}
		if rec.Status.Terminal() {
			// Redelivery after the interview already ended; close the
			// call without resurrecting a session.
			c.log.Info("voice turn for finished interview",
				slog.String("call_id", callID))
			return telephony.NewVoiceScript().Say(c.cfg.ClosingUtterance).Hangup()
		}
		s = c.sessions.Create(callID, rec.ID)
		topic = rec.Topic
	}

	s.Lock()
	defer s.Unlock()

	if s.Topic == "" {
		s.Topic = topic
	}

	script := telephony.NewVoiceScript()
	if !s.Greeted {
		script.Say(fmt.Sprintf(c.cfg.GreetingTemplate, s.Topic))
		s.Greeted = true
	}

	// One cycle, one question. The provider may deliver the same voice-turn
	// callback more than once; a duplicate repeats the outstanding
	// instruction instead of asking again.
	if s.Closing {
		return script.Say(c.cfg.ClosingUtterance).Hangup()
	}
	if len(s.Questions) > s.Cycles {
		q := s.Questions[len(s.Questions)-1]
		script.Say(q.Text)
		script.Record(c.paths.Advance, c.paths.Transcription, answerMaxSeconds)
		return script
	}

	qctx, cancel := context.WithTimeout(ctx, time.Duration(c.qcfg.TimeoutMS)*time.Millisecond)
	defer cancel()
	text, err := c.gen.NextQuestion(qctx, question.Request{
		Topic:       s.Topic,
		History:     historyOf(s),
		MaxTokens:   c.qcfg.MaxTokens,
		Temperature: c.qcfg.Temperature,
	})
	if err != nil {
		c.log.Error("question generation failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		c.terminateLocked(ctx, s, interview.StatusFailed)
		return c.apologyScript()
	}

	s.AddQuestion(text)
	c.questionCount.Add(ctx, 1)
	script.Say(text)
	script.Record(c.paths.Advance, c.paths.Transcription, answerMaxSeconds)
	return script
}

// Advance handles the recording-complete callback. A session must exist by
// now; its absence means a lost or duplicate callback and fails closed.
func (c *Controller) Advance(ctx context.Context, callID string) *telephony.VoiceScript {
	s, ok := c.sessions.Get(callID)
	if !ok {
		c.log.Warn("advance for unknown call", slog.String("call_id", callID))
		return c.apologyScript()
	}

	s.Lock()
	defer s.Unlock()

	s.Cycles++
	if s.Cycles < c.cfg.QuestionLimit {
		return telephony.NewVoiceScript().Pause(1).Redirect(c.paths.Voice)
	}

	// Last cycle done. The final transcription may still be in flight, so
	// the session lingers until it (or the terminal status webhook) lands.
	s.Closing = true
	if _, open := s.OldestUnanswered(); !open {
		c.terminateLocked(ctx, s, interview.StatusCompleted)
	}
	return telephony.NewVoiceScript().Say(c.cfg.ClosingUtterance).Hangup()
}

// Transcription pairs a transcribed answer with the oldest unanswered
// question, persists the pair and broadcasts it. Unknown calls are a logged
// no-op; the provider's status webhook cleans up eventually.
func (c *Controller) Transcription(ctx context.Context, callID, text string) {
	s, ok := c.sessions.Get(callID)
	if !ok {
		c.log.Info("transcription for unknown call, ignoring",
			slog.String("call_id", callID))
		return
	}

	s.Lock()
	defer s.Unlock()

	q, open := s.OldestUnanswered()
	if !open {
		c.log.Warn("transcription with no open question",
			slog.String("call_id", callID))
		return
	}
	q.Answered = true
	q.Answer = text
	s.Answers = append(s.Answers, text)

	if err := c.records.AppendResponse(ctx, s.InterviewID, q.Text, text); err != nil {
		c.log.Error("failed to persist response",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
	}
	c.notifier.InterviewUpdate(protocol.InterviewUpdate{
		InterviewID: s.InterviewID,
		CallID:      callID,
		Question:    q.Text,
		Answer:      text,
		Sequence:    q.Sequence,
		Timestamp:   time.Now().UTC(),
	})

	if s.Closing {
		if _, stillOpen := s.OldestUnanswered(); !stillOpen {
			c.terminateLocked(ctx, s, interview.StatusCompleted)
		}
	}
}

// CallStatus is the backstop: whatever the state machine was doing, a
// terminal provider status finalizes the record and evicts the session.
func (c *Controller) CallStatus(ctx context.Context, callID string, status telephony.CallStatus) {
	if !status.Terminal() {
		return
	}
	outcome := interview.StatusFailed
	if status.Successful() {
		outcome = interview.StatusCompleted
	}

	s, ok := c.sessions.Get(callID)
	if ok {
		s.Lock()
		c.terminateLocked(ctx, s, outcome)
		s.Unlock()
		return
	}

	// No session left: the interview already terminated through the flow,
	// or every other webhook was lost. Make sure the record agrees.
	rec, err := c.records.GetByCallID(ctx, callID)
	if err != nil {
		c.log.Info("status for unknown call, ignoring",
			slog.String("call_id", callID),
			slog.String("status", string(status)))
		return
	}
	if !rec.Status.Terminal() {
		if err := c.records.Finalize(ctx, rec.ID, outcome); err != nil {
			c.log.Error("failed to finalize record from status webhook",
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
		}
	}
}

// terminateLocked finalizes the durable record, evicts the session and
// announces the outcome. Callers hold the session lock.
func (c *Controller) terminateLocked(ctx context.Context, s *session.State, outcome interview.Status) {
	if err := c.records.Finalize(ctx, s.InterviewID, outcome); err != nil {
		c.log.Error("failed to finalize record",
			slog.String("interview_id", s.InterviewID),
			slog.String("error", err.Error()))
	}
	c.sessions.Remove(s.CallID)
	c.completedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	c.notifier.InterviewEnded(protocol.InterviewLifecycle{
		InterviewID: s.InterviewID,
		CallID:      s.CallID,
		Status:      string(outcome),
		Timestamp:   time.Now().UTC(),
	})
	c.log.Info("interview terminated",
		slog.String("call_id", s.CallID),
		slog.String("interview_id", s.InterviewID),
		slog.String("outcome", string(outcome)),
		slog.Int("answers", len(s.Answers)))
}

func (c *Controller) apologyScript() *telephony.VoiceScript {
	return telephony.NewVoiceScript().Say(c.cfg.ApologyUtterance).Hangup()
}

func historyOf(s *session.State) []question.Exchange {
	var history []question.Exchange
	for _, q := range s.Questions {
		if q.Answered {
			history = append(history, question.Exchange{Question: q.Text, Answer: q.Answer})
		}
	}
	return history
}
