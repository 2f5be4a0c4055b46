package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
)

const (
	DefaultOllamaAddr  = "http://127.0.0.1:11434"
	DefaultOllamaModel = "gemma3:4b"

	promptIntro = "I'll give you an official statement from FOMC. Based on this statement, please tell me: " +
		"(1) Whether this article describes a Federal Reserve decision about interest rates (including cuts, " +
		"increases, or maintaining current rates). Your answer must be either Yes or No, and nothing else. " +
		"I'll give you the statement shortly."
	promptSentence = "Tell me the exact sentence that explicitly mentions the Federal Reserve's interest rate " +
		"decision (whether it's a cut, increase, or maintaining current rates)."
	promptJSON = `Based on your answer above, analyze the Federal Reserve's interest rate decision and provide your answer in a JSON format with two keys:
1. "direction": The value should be either "increase", "decrease", or "maintain" (if rates are kept at current levels).
2. "basis_points": The value should be the number of basis points of the change (e.g., 50 for a 0.50% change, or 0 if rates are maintained).

Your response should only be the JSON object.`
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// OllamaExtractor asks a local Ollama model, over a short scripted
// conversation, whether the statement announces a rate decision and how
// large it is.
type OllamaExtractor struct {
	logger cometlog.Logger
	addr   string
	model  string
	client *http.Client
}

func NewOllamaExtractor(logger cometlog.Logger, addr, model string, timeout time.Duration) *OllamaExtractor {
	if addr == "" {
		addr = DefaultOllamaAddr
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaExtractor{
		logger: logger,
		addr:   strings.TrimRight(addr, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *OllamaExtractor) Extract(ctx context.Context, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrNoDecision
	}
	steps := []struct {
		prompt string
		check  func(answer string) error
	}{
		{prompt: promptIntro},
		{prompt: text, check: func(answer string) error {
			if strings.HasPrefix(strings.ToLower(answer), "no") {
				return ErrNoDecision
			}
			return nil
		}},
		{prompt: promptSentence},
		{prompt: promptJSON},
	}

	var (
		messages []chatMessage
		answer   string
	)
	for _, step := range steps {
		messages = append(messages, chatMessage{Role: "user", Content: step.prompt})
		var err error
		answer, err = o.chat(ctx, messages)
		if err != nil {
			return 0, err
		}
		o.logger.Debug("Model reply", "reply", answer)
		messages = append(messages, chatMessage{Role: "assistant", Content: answer})
		if step.check != nil {
			if err := step.check(answer); err != nil {
				return 0, err
			}
		}
	}

	return parseModelDecision(answer)
}

func (o *OllamaExtractor) chat(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: messages,
		Options:  map[string]any{"temperature": 0},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.addr+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("ollama chat: read response: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("ollama chat: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return "", fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, out.Error)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

type modelDecision struct {
	Direction   string   `json:"direction"`
	BasisPoints *float64 `json:"basis_points"`
}

// parseModelDecision reads the outermost JSON object in answer.
func parseModelDecision(answer string) (int64, error) {
	start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return 0, ErrNoDecision
	}
	var d modelDecision
	if err := json.Unmarshal([]byte(answer[start:end+1]), &d); err != nil {
		return 0, ErrNoDecision
	}
	switch strings.ToLower(strings.TrimSpace(d.Direction)) {
	case "maintain":
		return 0, nil
	case "increase":
		if d.BasisPoints == nil {
			return 0, ErrNoDecision
		}
		return int64(*d.BasisPoints), nil
	case "decrease":
		if d.BasisPoints == nil {
			return 0, ErrNoDecision
		}
		return -int64(*d.BasisPoints), nil
	default:
		return 0, ErrNoDecision
	}
}
