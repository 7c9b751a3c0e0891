package telephony

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider records placed calls without touching a network. Used in tests
// and in development mode.
type MockProvider struct {
	mu     sync.Mutex
	calls  []PlaceCallRequest
	nextID int
	// Err, when set, is returned from PlaceCall.
	Err error
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) PlaceCall(_ context.Context, req PlaceCallRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.nextID++
	m.calls = append(m.calls, req)
	return fmt.Sprintf("CA-mock-%04d", m.nextID), nil
}

// Calls returns a copy of every placed call.
func (m *MockProvider) Calls() []PlaceCallRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlaceCallRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
