package telephony

import (
	"encoding/xml"
	"fmt"
)

// VoiceScript builds the XML document the provider executes on a live call.
// Verbs run in the order they were added.
type VoiceScript struct {
	verbs []any
}

type sayVerb struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type recordVerb struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr"`
	Transcribe         bool     `xml:"transcribe,attr"`
	TranscribeCallback string   `xml:"transcribeCallback,attr"`
	MaxLength          int      `xml:"maxLength,attr"`
	PlayBeep           bool     `xml:"playBeep,attr"`
}

type pauseVerb struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type redirectVerb struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type hangupVerb struct {
	XMLName xml.Name `xml:"Hangup"`
}

type responseDoc struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

func NewVoiceScript() *VoiceScript { return &VoiceScript{} }

// Say speaks text to the caller.
func (v *VoiceScript) Say(text string) *VoiceScript {
	v.verbs = append(v.verbs, sayVerb{Text: text})
	return v
}

// Record captures the caller's answer with transcription requested; the
// provider POSTs to action when recording ends and to transcribeCallback when
// the transcript is ready.
func (v *VoiceScript) Record(action, transcribeCallback string, maxLengthSec int) *VoiceScript {
	v.verbs = append(v.verbs, recordVerb{
		Action:             action,
		Transcribe:         true,
		TranscribeCallback: transcribeCallback,
		MaxLength:          maxLengthSec,
		PlayBeep:           true,
	})
	return v
}

// Pause waits the given number of seconds.
func (v *VoiceScript) Pause(seconds int) *VoiceScript {
	v.verbs = append(v.verbs, pauseVerb{Length: seconds})
	return v
}

// Redirect hands call control to another webhook URL.
func (v *VoiceScript) Redirect(url string) *VoiceScript {
	v.verbs = append(v.verbs, redirectVerb{URL: url})
	return v
}

// Hangup ends the call.
func (v *VoiceScript) Hangup() *VoiceScript {
	v.verbs = append(v.verbs, hangupVerb{})
	return v
}

// Render encodes the script as an XML document.
func (v *VoiceScript) Render() ([]byte, error) {
	body, err := xml.Marshal(responseDoc{Verbs: v.verbs})
	if err != nil {
		return nil, fmt.Errorf("encode voice script: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
