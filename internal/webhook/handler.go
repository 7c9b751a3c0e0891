package webhook

import (
	"log/slog"
	"net/http"

	"github.com/phonescreen-labs/phonescreen-core/internal/flow"
	"github.com/phonescreen-labs/phonescreen-core/internal/telephony"
)

// Handler dispatches inbound provider callbacks to the flow controller by
// call identifier. It holds no state of its own.
type Handler struct {
	flow *flow.Controller
	log  *slog.Logger
}

func NewHandler(ctrl *flow.Controller, log *slog.Logger) *Handler {
	return &Handler{
		flow: ctrl,
		log:  log.With(slog.String("component", "webhook")),
	}
}

// Register mounts the provider callback routes.
func (h *Handler) Register(mux *http.ServeMux) {
	paths := flow.DefaultPaths()
	mux.HandleFunc("POST "+paths.Voice, h.handleVoice)
	mux.HandleFunc("POST "+paths.Advance, h.handleAdvance)
	mux.HandleFunc("POST "+paths.Transcription, h.handleTranscription)
	mux.HandleFunc("POST /webhooks/status", h.handleStatus)
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	h.writeScript(w, h.flow.VoiceTurn(r.Context(), callID))
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	h.writeScript(w, h.flow.Advance(r.Context(), callID))
}

func (h *Handler) handleTranscription(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	h.flow.Transcription(r.Context(), callID, r.PostFormValue("TranscriptionText"))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	status := telephony.CallStatus(r.PostFormValue("CallStatus"))
	h.flow.CallStatus(r.Context(), callID, status)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) callID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseForm(); err != nil {
		h.log.Warn("unparseable webhook body", slog.String("error", err.Error()))
		http.Error(w, "bad request", http.StatusBadRequest)
		return "", false
	}
	callID := r.PostForm.Get("CallSid")
	if callID == "" {
		h.log.Warn("webhook without call sid", slog.String("path", r.URL.Path))
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return "", false
	}
	return callID, true
}

func (h *Handler) writeScript(w http.ResponseWriter, script *telephony.VoiceScript) {
	body, err := script.Render()
	if err != nil {
		// Should be unreachable; the provider still needs a response.
		h.log.Error("failed to render voice script", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write(body)
}
