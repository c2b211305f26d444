package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"amzaki/internal/config"

	"google.golang.org/genai"
)

// Generation parameters sent with every request.
const (
	Temperature     float32 = 0.7
	TopP            float32 = 0.8
	TopK            float32 = 40
	MaxOutputTokens int32   = 2048
)

// SafetySettings blocks medium and above for every filtered harm category.
func SafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return settings
}

// GenerationConfig returns the fixed request configuration.
func GenerationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(Temperature),
		TopP:            genai.Ptr(TopP),
		TopK:            genai.Ptr(TopK),
		MaxOutputTokens: MaxOutputTokens,
		SafetySettings:  SafetySettings(),
	}
}

// GeminiClient sends prompts to the Gemini API through the genai SDK.
// A client built without an API key is still usable: every call fails
// with a BadRequest error wrapping ErrMissingCredential.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, httpClient *http.Client, logger *slog.Logger) (*GeminiClient, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	c := &GeminiClient{model: model, logger: logger}
	if !IsKnownModel(model) && logger != nil {
		logger.Warn("model is not in the known list, sending as is", slog.String("model", model))
	}
	if cfg.APIKey == "" {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return c, nil
}

// HasCredential reports whether the client was configured with an API key.
func (c *GeminiClient) HasCredential() bool {
	return c.client != nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", &Error{Kind: KindBadRequest, Message: ErrMissingCredential.Error(), Err: ErrMissingCredential}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), GenerationConfig())
	if err != nil {
		classified := classify(err)
		if c.logger != nil {
			c.logger.Warn("gemini request failed",
				slog.String("model", c.model),
				slog.String("kind", classified.Kind.String()),
				slog.Int("status", classified.Status),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()))
		}
		return "", classified
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindEmptyResponse, Message: emptyReason(resp), Err: ErrEmptyResponse}
	}
	if c.logger != nil {
		c.logger.Debug("gemini request completed",
			slog.String("model", c.model),
			slog.Int("chars", len(text)),
			slog.Duration("duration", time.Since(start)))
	}
	return text, nil
}

// classify maps SDK and transport errors onto the completion taxonomy.
func classify(err error) *Error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
			apiErr = *apiErrPtr
		} else {
			return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
		}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = err.Error()
	}
	return &Error{Kind: kindForStatus(apiErr.Code, apiErr.Status), Status: apiErr.Code, Message: msg, Err: err}
}

func kindForStatus(code int, status string) ErrorKind {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return KindBadRequest
	case http.StatusTooManyRequests:
		return KindRateLimited
	}
	switch strings.ToUpper(status) {
	case "INVALID_ARGUMENT", "UNAUTHENTICATED", "PERMISSION_DENIED":
		return KindBadRequest
	case "RESOURCE_EXHAUSTED":
		return KindRateLimited
	}
	return KindUnknown
}

func emptyReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return "no response"
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return fmt.Sprintf("prompt blocked: %s", fb.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return fmt.Sprintf("no text, finish reason %s", resp.Candidates[0].FinishReason)
	}
	return "no text in response"
}
