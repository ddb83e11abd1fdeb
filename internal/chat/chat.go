package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("chat assistant is not configured")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

const (
	DefaultModel    = "gemini-1.5-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
)

// Client sends a prompt to a language model.
type Client interface {
	Ask(ctx context.Context, system, prompt string) (string, error)
}

// GeminiClient answers prompts through the Gemini API.
type GeminiClient struct {
	Model    string
	Endpoint string
	client   *genai.Client
}

// NewGeminiClient returns a client with defaults for empty model and
// endpoint.
func NewGeminiClient(ctx context.Context, apiKey, model, endpoint string) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModel
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		HTTPOptions: genai.HTTPOptions{BaseURL: endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		Model:    model,
		Endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}, nil
}

// Ask implements Client.
func (c *GeminiClient) Ask(ctx context.Context, system, prompt string) (string, error) {
	var conf *genai.GenerateContentConfig
	if system != "" {
		conf = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.Model, genai.Text(prompt), conf)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat request failed with status %d: %s", apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", errors.New("chat response contained no answer")
	}
	return answer, nil
}

const systemPrompt = `Du bist ein Analyse-Assistent für das Maschinen-Dashboard eines Landtechnik-Händlers.
Beantworte Fragen ausschließlich auf Basis der bereitgestellten Daten. DB steht für Deckungsbeitrag.
Antworte auf Deutsch, knapp und mit konkreten Zahlen. Wenn die Daten eine Frage nicht beantworten, sage das.`

// Assistant combines the data summary with a user question.
type Assistant struct {
	client Client
	logger *zap.Logger
}

// NewAssistant returns an assistant. A nil client disables it.
func NewAssistant(client Client, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{client: client, logger: logger}
}

// Enabled reports whether questions can be answered.
func (a *Assistant) Enabled() bool {
	return a != nil && a.client != nil
}

// Ask answers question using the machines the user may see.
func (a *Assistant) Ask(ctx context.Context, question string, ds *sheet.Dataset, machines []sheet.Machine) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	prompt := fmt.Sprintf("Daten:\n%s\nFrage: %s", Summary(ds, machines), question)
	start := time.Now()
	answer, err := a.client.Ask(ctx, systemPrompt, prompt)
	if err != nil {
		a.logger.Warn("chat request failed",
			zap.String("op", "chat.Assistant.Ask"),
			zap.Error(err),
		)
		return "", err
	}
	a.logger.Info("chat answered",
		zap.String("op", "chat.Assistant.Ask"),
		zap.Int("machines", len(machines)),
		zap.Int("promptBytes", len(prompt)),
		zap.Duration("duration", time.Since(start)),
	)
	return answer, nil
}
