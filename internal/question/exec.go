package question

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execGenerator struct {
	cmd []string
	mu  sync.Mutex
}

type execPayload struct {
	Topic       string     `json:"topic"`
	History     []Exchange `json:"history"`
	Prompt      string     `json:"prompt"`
	MaxTokens   int        `json:"max_tokens"`
	Temperature float64    `json:"temperature"`
}

type execResponse struct {
	Question string `json:"question"`
}

// NewExecGenerator shells out to an arbitrary command that reads a JSON
// request on stdin and writes {"question": ...} on stdout.
func NewExecGenerator(command string) (Generator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse question command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("question command empty")
	}
	return &execGenerator{cmd: args}, nil
}

func (g *execGenerator) NextQuestion(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, err := json.Marshal(execPayload{
		Topic:       req.Topic,
		History:     req.History,
		Prompt:      BuildPrompt(req.Topic, req.History),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	base := g.cmd[0]
	args := append([]string{}, g.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("question exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode question exec response: %w", err)
	}
	text := strings.TrimSpace(resp.Question)
	if text == "" {
		return "", fmt.Errorf("question exec command returned empty question")
	}
	return text, nil
}
