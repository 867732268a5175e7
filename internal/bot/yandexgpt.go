package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/resilience"
)

// DefaultEndpoint is the YandexGPT completion API
const DefaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

var (
	// ErrGeneratorFailed wraps every upstream failure of the completion API
	ErrGeneratorFailed = errors.New("reply generation failed")
	// ErrNotConfigured is returned when the API key or folder is missing
	ErrNotConfigured = errors.New("reply generator is not configured")
)

// YandexGPTConfig configures the completion client
type YandexGPTConfig struct {
	Endpoint    string
	APIKey      string
	AuthScheme  string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// YandexGPT calls the YandexGPT completion API.
type YandexGPT struct {
	cfg     YandexGPTConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type completionRequest struct {
	ModelURI          string              `json:"modelUri"`
	CompletionOptions completionOptions   `json:"completionOptions"`
	Messages          []completionMessage `json:"messages"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message completionMessage `json:"message"`
			Status  string            `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}

// NewYandexGPT creates a client. breaker may be nil.
func NewYandexGPT(cfg YandexGPTConfig, breaker *resilience.CircuitBreaker, log *logger.Logger) *YandexGPT {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Api-Key"
	}
	if cfg.Model == "" {
		cfg.Model = "yandexgpt/latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &YandexGPT{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     log,
	}
}

// Generate asks the model for a reply
func (y *YandexGPT) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if y.cfg.APIKey == "" || y.cfg.FolderID == "" {
		return "", ErrNotConfigured
	}

	ctx, span := otel.Tracer("radiance/backend/internal/bot").Start(ctx, "yandexgpt.completion")
	defer span.End()
	span.SetAttributes(attribute.String("model", y.cfg.Model))

	var reply string
	call := func(ctx context.Context) error {
		var err error
		reply, err = y.complete(ctx, systemPrompt, userPrompt)
		return err
	}

	var err error
	if y.breaker != nil {
		err = y.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (y *YandexGPT) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", y.cfg.FolderID, y.cfg.Model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: y.cfg.Temperature,
			MaxTokens:   strconv.Itoa(y.cfg.MaxTokens),
		},
		Messages: []completionMessage{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", y.cfg.AuthScheme+" "+y.cfg.APIKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		y.log.Warn("Completion API returned an error",
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return "", fmt.Errorf("%w: status %d", ErrGeneratorFailed, resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGeneratorFailed, err)
	}
	if len(out.Result.Alternatives) == 0 {
		return "", fmt.Errorf("%w: no alternatives", ErrGeneratorFailed)
	}

	text := finishSentence(out.Result.Alternatives[0].Message.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrGeneratorFailed)
	}
	return text, nil
}
