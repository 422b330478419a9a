package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 1 * time.Second
)

// OpenAIClient talks to any OpenAI-compatible chat completions server
// (a local Ollama or llama.cpp instance, or a hosted endpoint).
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	visionModel  string
	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *imageURL   `json:"image_url,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient creates a client for baseURL (for example http://127.0.0.1:11434/v1).
// visionModel is used for requests with attachments and defaults to model.
func NewOpenAIClient(baseURL, apiKey, model, visionModel string, timeout time.Duration) *OpenAIClient {
	if visionModel == "" {
		visionModel = model
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		visionModel:  visionModel,
		client:       &http.Client{Timeout: timeout},
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
	}
}

// Availability lists the server's models and reports readily only if the configured model is present.
func (c *OpenAIClient) Availability(ctx context.Context) (Availability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return AvailabilityNo, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return AvailabilityNo, fmt.Errorf("completion service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AvailabilityNo, fmt.Errorf("model listing failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return AvailabilityNo, fmt.Errorf("failed to decode model list: %w", err)
	}
	for _, m := range models.Data {
		if m.ID == c.model || strings.TrimSuffix(m.ID, ":latest") == c.model {
			return AvailabilityReadily, nil
		}
	}
	return AvailabilityAfterDownload, nil
}

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Complete sends one chat completion, retrying rate limits and server errors with backoff.
func (c *OpenAIClient) Complete(ctx context.Context, r Request) (string, error) {
	if c.baseURL == "" || c.model == "" {
		return "", ErrUnavailable
	}

	model := c.model
	var messages []chatMessage
	if r.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: r.System})
	}
	if len(r.Attachments) == 0 {
		messages = append(messages, chatMessage{Role: "user", Content: r.Prompt})
	} else {
		model = c.visionModel
		parts := []contentPart{{Type: "text", Text: r.Prompt}}
		for _, a := range r.Attachments {
			switch a.Kind {
			case KindImage:
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: a.DataURL()}})
			case KindAudio:
				parts = append(parts, contentPart{Type: "input_audio", InputAudio: &inputAudio{
					Data:   base64.StdEncoding.EncodeToString(a.Data),
					Format: a.AudioFormat(),
				}})
			}
		}
		messages = append(messages, chatMessage{Role: "user", Content: parts})
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: r.Temperature,
		TopK:        r.TopK,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		c.authorize(httpReq)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("completion API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("completion API error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var chat chatResponse
		if err := json.Unmarshal(respBody, &chat); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(chat.Choices) == 0 {
			return "", fmt.Errorf("completion API returned no choices")
		}
		return chat.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}
