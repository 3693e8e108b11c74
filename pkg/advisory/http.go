package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultURL   = "https://api.openai.com/v1/chat/completions"
	DefaultModel = "gpt-3.5-turbo"

	promptPrefix  = "What do these processes in Linux do? Answer with at least 300 words: "
	maxErrorBytes = 1024
)

// HTTPAdvisor asks an OpenAI compatible chat completions endpoint.
type HTTPAdvisor struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewHTTPAdvisor fills in the default endpoint and model.
func NewHTTPAdvisor(url, model, apiKey string) *HTTPAdvisor {
	if url == "" {
		url = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &HTTPAdvisor{URL: url, Model: model, APIKey: apiKey, Client: http.DefaultClient}
}

// Prompt builds the question sent for names.
func Prompt(names []string) string {
	return promptPrefix + strings.Join(names, ", ")
}

// Advise posts one chat completion request and returns the first choice.
func (a *HTTPAdvisor) Advise(ctx context.Context, names []string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    a.Model,
		Messages: []chatMessage{{Role: "user", Content: Prompt(names)}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %w", ErrAdvisorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return "", fmt.Errorf("%w: %s: %s", ErrAdvisorUnavailable, resp.Status, strings.TrimSpace(string(msg)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrAdvisorUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrAdvisorUnavailable)
	}
	return decoded.Choices[0].Message.Content, nil
}
