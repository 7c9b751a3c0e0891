package session

import (
	"sync"
)

// Question is one asked question tagged with its position in the interview.
// Answered flips when a transcription has been paired with it, so late or
// reordered transcription callbacks always land on the oldest open question.
type Question struct {
	Sequence int
	Text     string
	Answer   string
	Answered bool
}

// State is the ephemeral per-call interview progress. It exists only between
// call placement and call termination and is owned by the Store; handlers
// borrow it for the duration of one webhook under its lock.
type State struct {
	// mu serializes webhook handling for a single call. Webhooks for
	// different calls proceed independently.
	mu sync.Mutex

	CallID      string
	InterviewID string
	Topic       string
	Questions   []Question
	Answers     []string
	// Cycles counts completed question/answer cycles.
	Cycles  int
	Greeted bool
	// Closing is set once the final cycle's recording has finished; the
	// session then survives only until its last transcription (or the
	// provider's terminal status webhook) arrives.
	Closing bool
}

func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

// AddQuestion records a freshly asked question and returns its sequence.
func (s *State) AddQuestion(text string) int {
	seq := len(s.Questions)
	s.Questions = append(s.Questions, Question{Sequence: seq, Text: text})
	return seq
}

// OldestUnanswered returns the first question with no paired answer.
func (s *State) OldestUnanswered() (*Question, bool) {
	for i := range s.Questions {
		if !s.Questions[i].Answered {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Store maps call identifiers to live interview sessions. It is safe for
// concurrent use from independent calls.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*State)}
}

// Get returns the session for a call, if one is live.
func (st *Store) Get(callID string) (*State, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[callID]
	return s, ok
}

// Create registers a session for a call. Duplicate creation attempts caused
// by out-of-order callbacks return the existing session untouched.
func (st *Store) Create(callID, interviewID string) *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[callID]; ok {
		return s
	}
	s := &State{CallID: callID, InterviewID: interviewID}
	st.sessions[callID] = s
	return s
}

// Remove evicts a call's session. Every termination path must call this so
// the store converges to empty once all calls are done.
func (st *Store) Remove(callID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, callID)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// CallIDs snapshots the live call identifiers, used when draining on
// shutdown.
func (st *Store) CallIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}
