package llm

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// #endregion

// #region generator

// Generator produces host output for a prompt. The orchestrator depends
// on this interface, not the HTTP client, so tests and replays can
// substitute canned generations.
type Generator interface {
	// Generate returns the generated text and a [0,1] confidence estimate.
	Generate(ctx context.Context, prompt, systemContext string) (string, float64, error)
}

// #endregion generator

// #region wire

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Logprobs    bool      `json:"logprobs,omitempty"`
}

type tokenLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

type choice struct {
	Message  message `json:"message"`
	Logprobs *struct {
		Content []tokenLogprob `json:"content"`
	} `json:"logprobs"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

// #endregion wire

// #region client

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewClient creates a Client for the given endpoint and model.
func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

// Generate sends a non-streaming completion request and derives a
// confidence estimate from token logprobs. When the endpoint returns no
// logprobs, confidence falls back to 0.5 — unknown, not trusted.
func (c *Client) Generate(ctx context.Context, prompt, systemContext string) (string, float64, error) {
	var msgs []message
	if systemContext != "" {
		msgs = append(msgs, message{Role: "system", Content: systemContext})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: msgs,
		Logprobs: true,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("generation API status=%d body=%s", resp.StatusCode, string(b))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("generation API returned no choices")
	}

	ch := parsed.Choices[0]
	return ch.Message.Content, confidenceFrom(ch.Logprobs), nil
}

// confidenceFrom maps mean token logprob to [0,1] via exp. A model that
// put probability ~1 on every token lands near 1; scattered probability
// mass decays toward 0.
func confidenceFrom(lp *struct {
	Content []tokenLogprob `json:"content"`
}) float64 {
	if lp == nil || len(lp.Content) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range lp.Content {
		sum += t.Logprob
	}
	return math.Exp(sum / float64(len(lp.Content)))
}

// #endregion client
