package generation

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
	defaultBaseURL = "https://llm.api.cloud.yandex.net"
	requestTimeout = 45 * time.Second
)

const systemPrompt = "You are an experienced chef. For the dish or ingredients the user names, " +
	"write one complete recipe: a short description, an ingredient list with quantities, " +
	"numbered cooking steps and one practical tip. Keep it under 400 words."

// YandexGPT calls the Yandex Foundation Models completion API.
type YandexGPT struct {
	apiKey   string
	folderID string
	model    string
	baseURL  string
	client   *http.Client
}

func NewYandexGPT(apiKey, folderID, model string) *YandexGPT {
	return &YandexGPT{
		apiKey:   apiKey,
		folderID: folderID,
		model:    model,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Generate asks the model for one recipe. The call is bounded by the client
// timeout and the caller's context, whichever fires first.
func (y *YandexGPT) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", y.folderID, y.model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: 0.6,
			MaxTokens:   "2000",
		},
		Messages: []message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: prompt},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := y.baseURL + "/foundationModels/v1/completion"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+y.apiKey)
	httpReq.Header.Set("x-folder-id", y.folderID)

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion failed: status=%d, body=%s", resp.StatusCode, truncate(respBody, 200))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", fmt.Errorf("completion returned no alternatives")
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
