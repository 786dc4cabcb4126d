// Package assist turns free-form text into a draft create-event request via
// an OpenAI-compatible chat-completions endpoint. Drafts are never persisted;
// the caller reviews and submits them through the normal admission pipeline.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const systemPrompt = `You convert event descriptions into JSON. Reply with a single JSON object
with the fields: name, description, groups (array), tags (array), location_id,
room_id, start_time (ISO 8601), end_time (ISO 8601), max_tickets (integer).
Leave fields you cannot infer empty. Reply with JSON only, no prose.`

// Config points the drafter at its model endpoint.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
}

// Draft is the model's proposed create-event request.
type Draft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Groups      []string `json:"groups"`
	Tags        []string `json:"tags"`
	LocationID  string   `json:"location_id"`
	RoomID      string   `json:"room_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	MaxTickets  uint     `json:"max_tickets"`
}

// Drafter calls the completion endpoint.
type Drafter struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewDrafter creates a drafter with a bounded HTTP client.
func NewDrafter(cfg Config, logger *zap.Logger) *Drafter {
	return &Drafter{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (d *Drafter) Enabled() bool {
	return d.cfg.Endpoint != "" && d.cfg.APIKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// DraftEvent asks the model for a draft matching the free text.
func (d *Drafter) DraftEvent(ctx context.Context, text string) (*Draft, error) {
	payload, err := json.Marshal(chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode draft request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build draft request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call draft endpoint: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read draft response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("draft endpoint returned non-200",
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("draft endpoint status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode draft response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("draft response had no choices")
	}
	content := stripFences(cr.Choices[0].Message.Content)

	var draft Draft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("draft is not valid JSON: %w", err)
	}
	return &draft, nil
}

// stripFences removes a markdown code fence the model sometimes wraps the
// JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
