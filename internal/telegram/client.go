package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	requestTimeout = 30 * time.Second
)

// Client is a minimal Bot API client for the handful of methods the bot
// sends. Delivery is fire-and-forget: a failed send is logged by the caller,
// never retried against the accounting state.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) SendMessage(ctx context.Context, m OutgoingMessage) error {
	return c.call(ctx, "sendMessage", m)
}

func (c *Client) EditMessageText(ctx context.Context, m EditMessage) error {
	return c.call(ctx, "editMessageText", m)
}

// AnswerCallback acknowledges a button press so the client stops showing a
// spinner. Text is optional and shows as a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{CallbackQueryID: callbackID, Text: text}
	return c.call(ctx, "answerCallbackQuery", payload)
}

// SendTyping shows the "typing..." indicator while a generation runs.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	payload := struct {
		ChatID int64  `json:"chat_id"`
		Action string `json:"action"`
	}{ChatID: chatID, Action: "typing"}
	return c.call(ctx, "sendChatAction", payload)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode %s response (status=%d): %w", method, resp.StatusCode, err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram %s: %s", method, parsed.Description)
	}
	return nil
}
