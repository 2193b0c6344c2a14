package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
)

const DefaultModel = "gemini-1.5-flash"

// Client implements llm.Completer using Google's Gemini API.
type Client struct {
	client   *genai.Client
	model    string
	generate func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c := &Client{client: client, model: model}
	c.generate = func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return c.client.GenerativeModel(c.model).GenerateContent(ctx, genai.Text(prompt))
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, prompt)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			se := &llm.StatusError{Code: gerr.Code, Message: gerr.Message}
			return "", fmt.Errorf("gemini: generate content: %w: %w", se, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini: prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, llm.ErrRefused)
		}
		return "", fmt.Errorf("gemini: no candidates: %w", llm.ErrEmptyCompletion)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("gemini: empty content: %w", llm.ErrEmptyCompletion)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("gemini: empty content: %w", llm.ErrEmptyCompletion)
	}
	return text.String(), nil
}

// Close releases resources held by the Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
