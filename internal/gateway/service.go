package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/phonescreen-labs/phonescreen-core/internal/bus"
	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/flow"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
	"github.com/phonescreen-labs/phonescreen-core/internal/session"
	"github.com/phonescreen-labs/phonescreen-core/internal/telephony"
)

// Service is the client-facing WebSocket gateway: it accepts
// start-interview requests and fans interview updates out to every
// connected observer.
type Service struct {
	httpCfg  config.HTTPConfig
	manager  *interview.Manager
	provider telephony.Provider
	sessions *session.Store
	bus      *bus.Client
	hub      *Hub
	sub      *nats.Subscription
	upgrader websocket.Upgrader
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewService(httpCfg config.HTTPConfig, manager *interview.Manager, provider telephony.Provider, sessions *session.Store, busClient *bus.Client, log *slog.Logger) *Service {
	l := log.With(slog.String("component", "gateway"))
	return &Service{
		httpCfg:  httpCfg,
		manager:  manager,
		provider: provider,
		sessions: sessions,
		bus:      busClient,
		hub:      NewHub(l),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: l,
	}
}

// Start subscribes to interview updates on the bus.
func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectInterviewUpdate, s.handleUpdate)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.hub.CloseAll()
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

// Hub exposes the observer registry, mainly for tests.
func (s *Service) Hub() *Hub { return s.hub }

func (s *Service) handleUpdate(msg *nats.Msg) {
	var update protocol.InterviewUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		s.log.Warn("failed to decode interview update", slog.String("error", err.Error()))
		return
	}
	s.hub.Broadcast(protocol.ClientEnvelope{
		Type:        protocol.TypeInterviewUpdate,
		InterviewID: update.InterviewID,
		CallID:      update.CallID,
		Question:    update.Question,
		Answer:      update.Answer,
	})
}

// HandleWS upgrades the connection and serves the client protocol until the
// peer disconnects.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan protocol.ClientEnvelope, 16)}
	s.hub.register(c)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()

	s.readLoop(r.Context(), c)
}

func (s *Service) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			// Skip this observer from now on; others are unaffected.
			s.hub.unregister(c)
			c.shut()
			break
		}
	}
	_ = c.conn.Close()
}

func (s *Service) readLoop(ctx context.Context, c *client) {
	defer func() {
		s.hub.unregister(c)
		c.shut()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.ClientEnvelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, errorEnvelope("malformed message: expected JSON"))
			continue
		}

		switch msg.Type {
		case protocol.TypeStartInterview:
			s.reply(c, s.startInterview(ctx, msg.PhoneNumber, msg.Topic))
		default:
			s.reply(c, errorEnvelope("unknown message type "+msg.Type))
		}
	}
}

func (s *Service) reply(c *client, msg protocol.ClientEnvelope) {
	if !c.enqueue(msg) {
		s.log.Warn("dropping reply to gone or saturated client")
	}
}

func (s *Service) startInterview(ctx context.Context, phoneNumber, topic string) protocol.ClientEnvelope {
	if err := interview.ValidatePhoneNumber(phoneNumber); err != nil {
		return errorEnvelope("invalid phone number")
	}
	if strings.TrimSpace(topic) == "" {
		return errorEnvelope("topic must not be empty")
	}

	rec, err := s.manager.CreateRecord(ctx, phoneNumber, topic)
	if err != nil {
		s.log.Error("failed to create interview record", slog.String("error", err.Error()))
		return errorEnvelope("could not create interview")
	}

	base := strings.TrimRight(s.httpCfg.PublicURL, "/")
	paths := flow.DefaultPaths()
	callID, err := s.provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:        phoneNumber,
		VoiceURL:  base + paths.Voice,
		StatusURL: base + "/webhooks/status",
	})
	if err != nil {
		s.log.Error("failed to place call", slog.String("error", err.Error()))
		if ferr := s.manager.Finalize(ctx, rec.ID, interview.StatusFailed); ferr != nil {
			s.log.Error("failed to mark record failed", slog.String("error", ferr.Error()))
		}
		return errorEnvelope("could not place call")
	}

	if err := s.manager.AttachCall(ctx, rec.ID, callID); err != nil {
		s.log.Error("failed to attach call", slog.String("error", err.Error()))
		return errorEnvelope("could not start interview")
	}
	st := s.sessions.Create(callID, rec.ID)
	st.Lock()
	st.Topic = topic
	st.Unlock()

	s.log.Info("interview started",
		slog.String("interview_id", rec.ID),
		slog.String("call_id", callID),
		slog.String("topic", topic))

	return protocol.ClientEnvelope{
		Type:        protocol.TypeInterviewStarted,
		InterviewID: rec.ID,
		CallID:      callID,
	}
}

func errorEnvelope(message string) protocol.ClientEnvelope {
	return protocol.ClientEnvelope{Type: protocol.TypeError, Message: message}
}
