package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChatOutput posts Records to a generic incoming webhook (Slack-,
// Mattermost-, and Discord-compatible webhooks all accept a JSON body with
// a "text" field). No chat SDK appears anywhere in the pack, so this is a
// standard-library-justified case — see DESIGN.md.
type ChatOutput struct {
	webhookURL string
	client     *http.Client
}

func NewChatOutput(webhookURL string) *ChatOutput {
	return &ChatOutput{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

type chatPayload struct {
	Text string `json:"text"`
}

func (c *ChatOutput) Emit(rec Record) error {
	body, err := json.Marshal(chatPayload{
		Text: fmt.Sprintf("[%s] %s: %s", rec.Level, rec.SourceName, rec.Message),
	})
	if err != nil {
		return fmt.Errorf("eventlog: marshal chat payload: %w", err)
	}

	resp, err := c.client.Post(c.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("eventlog: post to webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("eventlog: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
