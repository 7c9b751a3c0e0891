package question

import (
	"context"
	"fmt"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
)

// Exchange is one prior question/answer pair fed back into the prompt.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request describes what the next interview question should cover.
type Request struct {
	Topic       string
	History     []Exchange
	MaxTokens   int
	Temperature float64
}

// Generator defines a pluggable question-producing backend.
type Generator interface {
	NextQuestion(ctx context.Context, req Request) (string, error)
}

// New builds the generator selected by config.
func New(cfg config.QuestionConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown question generator mode %q", cfg.Mode)
	}
}
