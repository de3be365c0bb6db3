// Package line implements the slice of the LINE Messaging API the bot
// needs: webhook signature validation, event parsing, and reply/push.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrInvalidSignature rejects webhook bodies whose X-Line-Signature does
// not match the channel secret.
var ErrInvalidSignature = fmt.Errorf("invalid webhook signature")

// ValidateSignature checks the webhook signature: base64 of the
// HMAC-SHA256 of the raw body keyed by the channel secret.
func ValidateSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature the platform would send for a body. Used by
// tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Event is one webhook event. Only text message events carry Message data.
type Event struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// PushTarget is the chat to push follow-up messages to: the group the
// event came from, otherwise the user.
func (e Event) PushTarget() string {
	if e.Source.GroupID != "" {
		return e.Source.GroupID
	}
	return e.Source.UserID
}

type webhookRequest struct {
	Events []Event `json:"events"`
}

// ParseWebhook validates the signature and decodes the events.
func ParseWebhook(secret string, body []byte, signature string) ([]Event, error) {
	if !ValidateSignature(secret, body, signature) {
		return nil, ErrInvalidSignature
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}
	return req.Events, nil
}

// Message is an outgoing message payload, text or image.
type Message struct {
	Type               string `json:"type"`
	Text               string `json:"text,omitempty"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

// Text builds a text message.
func Text(text string) Message {
	return Message{Type: "text", Text: text}
}

// Image builds an image message; LINE fetches both URLs over HTTPS.
func Image(url string) Message {
	return Message{Type: "image", OriginalContentURL: url, PreviewImageURL: url}
}

const defaultEndpoint = "https://api.line.me"

// Client calls the Messaging API with a channel access token.
type Client struct {
	Endpoint string
	token    string
	http     *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		Endpoint: defaultEndpoint,
		token:    token,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Reply answers an event through its reply token. A token is single-use
// and expires quickly, so failures are surfaced, not retried.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	return c.post(ctx, "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	})
}

// Push sends messages outside a reply window.
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	return c.post(ctx, "/v2/bot/message/push", map[string]any{
		"to":       to,
		"messages": messages,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("line api %s: %s: %s", path, resp.Status, detail)
	}
	return nil
}
