package telephony

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
)

func TestVoiceScriptRender(t *testing.T) {
	script := NewVoiceScript().
		Say("Hello!").
		Record("/webhooks/advance", "/webhooks/transcription", 60)
	out, err := script.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := string(out)

	if !strings.HasPrefix(got, xml.Header) {
		t.Fatalf("missing xml header: %s", got)
	}
	sayIdx := strings.Index(got, "<Say>Hello!</Say>")
	recIdx := strings.Index(got, "<Record")
	if sayIdx < 0 || recIdx < 0 || sayIdx > recIdx {
		t.Fatalf("verb order broken: %s", got)
	}
	if !strings.Contains(got, `transcribeCallback="/webhooks/transcription"`) {
		t.Fatalf("missing transcription callback: %s", got)
	}
	if !strings.Contains(got, `transcribe="true"`) {
		t.Fatalf("transcription not requested: %s", got)
	}

	// Output must stay well-formed XML.
	var doc struct {
		XMLName xml.Name `xml:"Response"`
	}
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output not well-formed: %v", err)
	}
}

func TestVoiceScriptHangupAndRedirect(t *testing.T) {
	out, err := NewVoiceScript().Pause(1).Redirect("/webhooks/voice").Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), `<Pause length="1"></Pause>`) && !strings.Contains(string(out), `<Pause length="1"/>`) {
		t.Fatalf("missing pause: %s", out)
	}
	if !strings.Contains(string(out), "<Redirect>/webhooks/voice</Redirect>") {
		t.Fatalf("missing redirect: %s", out)
	}

	out, err = NewVoiceScript().Say("Bye").Hangup().Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "<Hangup") {
		t.Fatalf("missing hangup: %s", out)
	}
}

func TestCallStatusClassification(t *testing.T) {
	for _, s := range []CallStatus{StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []CallStatus{StatusInitiated, StatusRinging, StatusAnswered, StatusInProgress} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
	if !StatusCompleted.Successful() || StatusFailed.Successful() {
		t.Error("success classification broken")
	}
}

func TestRESTProviderPlaceCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/2010-04-01/Accounts/AC123/Calls.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "AC123" || pass != "token" {
			t.Errorf("unexpected auth %s:%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("To") != "+14155552671" {
			t.Errorf("unexpected To %s", r.PostForm.Get("To"))
		}
		if r.PostForm.Get("Url") != "https://example.com/webhooks/voice" {
			t.Errorf("unexpected Url %s", r.PostForm.Get("Url"))
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "CA999", "status": "queued"})
	}))
	defer srv.Close()

	p := NewRESTProvider(config.TelephonyConfig{
		Mode:       "rest",
		Endpoint:   srv.URL,
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+15005550006",
		TimeoutMS:  2000,
	})
	callID, err := p.PlaceCall(context.Background(), PlaceCallRequest{
		To:        "+14155552671",
		VoiceURL:  "https://example.com/webhooks/voice",
		StatusURL: "https://example.com/webhooks/status",
	})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if callID != "CA999" {
		t.Fatalf("unexpected call id %s", callID)
	}
}

func TestRESTProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid To number"})
	}))
	defer srv.Close()

	p := NewRESTProvider(config.TelephonyConfig{Endpoint: srv.URL, AccountSID: "AC", AuthToken: "t", FromNumber: "+1", TimeoutMS: 2000})
	if _, err := p.PlaceCall(context.Background(), PlaceCallRequest{To: "+0"}); err == nil {
		t.Fatal("expected rejection error")
	} else if !strings.Contains(err.Error(), "invalid To number") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}
