package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	tutorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "tutor_duration_seconds",
		Help:      "Duration of AI tutor requests",
	}, []string{"model"})

	tutorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "tutor_failures_total",
		Help:      "Number of AI tutor failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI tutor.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAITutor implements Tutor against the OpenAI chat completion API.
type OpenAITutor struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAITutor builds a new tutor using the provided configuration.
func NewOpenAITutor(cfg OpenAIConfig) (*OpenAITutor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAITutor{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-quiz-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_tutor").Logger(),
	}, nil
}

// Ask sends the question to OpenAI and returns the first completion.
func (t *OpenAITutor) Ask(parent context.Context, question string) (Answer, error) {
	ctx, span := t.tracer.Start(parent, "openai.ask", trace.WithAttributes(
		attribute.String("model", t.cfg.Model),
	))
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		err := fmt.Errorf("question is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, err
	}

	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.cfg.Model,
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: t.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: tutorSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	tutorDuration.WithLabelValues(t.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		tutorFailures.WithLabelValues(t.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn().Err(err).Msg("openai request failed")
		return Answer{}, fmt.Errorf("openai ask: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		tutorFailures.WithLabelValues(t.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, err
	}

	return Answer{
		Question: question,
		Answer:   strings.TrimSpace(resp.Choices[0].Message.Content),
		Source:   t.cfg.Model,
	}, nil
}

func tutorSystemPrompt() string {
	return "You are a patient study tutor for secondary school students. Explain concepts step by step " +
		"and never reveal answers to graded quiz questions verbatim."
}
