package transcript

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/moai-adk/orchestrator/internal/telemetry"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	// maxPromptChars keeps the tail of long transcripts, where completions land.
	maxPromptChars = 60000
)

// ErrAPIKeyRequired is returned when no Anthropic API key is available.
var ErrAPIKeyRequired = errors.New("API key required")

var specIDPattern = regexp.MustCompile(`(?i)SPEC-[A-Z0-9-]+`)

const promptTemplate = `The following is the end of a coding session transcript. An agent marks a
specification as finished by writing %s next to its identifier.

List every specification identifier (format SPEC-XXX) that the transcript declares
finished. Reply with the identifiers only, one per line, or NONE.

<transcript>
%s
</transcript>`

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClaudeExtractor asks a Claude model which specs a transcript completes.
// Only ids that literally occur in the transcript are returned.
type ClaudeExtractor struct {
	messages       messageCreator
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// NewClaudeExtractor creates an extractor. ANTHROPIC_API_KEY takes precedence
// over apiKey.
func NewClaudeExtractor(apiKey, model string) (*ClaudeExtractor, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	aiMetricsOnce.Do(initAIMetrics)
	return &ClaudeExtractor{
		messages:       &client.Messages,
		model:          anthropic.Model(model),
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// ExtractCompletedIDs implements Extractor.
func (c *ClaudeExtractor) ExtractCompletedIDs(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	reply, err := c.callWithRetry(ctx, fmt.Sprintf(promptTemplate, Marker, tail(text, maxPromptChars)))
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, id := range specIDPattern.FindAllString(text, -1) {
		present[strings.ToUpper(id)] = true
	}
	var ids []string
	for _, id := range specIDPattern.FindAllString(reply, -1) {
		if present[strings.ToUpper(id)] {
			ids = append(ids, id)
		}
	}
	return uniqueIDs(ids), nil
}

// tail returns at most limit bytes from the end of s, starting on a rune
// boundary.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/moai-adk/orchestrator/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("orch.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("orch.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("orch.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (c *ClaudeExtractor) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/moai-adk/orchestrator/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("orch.ai.model", string(c.model)),
		attribute.String("orch.ai.operation", "transcript"),
	)

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := c.messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("orch.ai.model", string(c.model))
			if aiMetrics.inputTokens != nil {
				aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(attribute.Int("orch.ai.attempts", attempt+1))

			var texts []string
			for _, block := range message.Content {
				if block.Type == "text" {
					texts = append(texts, block.Text)
				}
			}
			if len(texts) == 0 {
				return "", fmt.Errorf("unexpected response format: no text blocks")
			}
			return strings.Join(texts, "\n"), nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return "", fmt.Errorf("failed after %d retries: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// NewExtractor returns the extractor named by kind. Unknown kinds and a
// Claude extractor without credentials fall back to the regex extractor;
// the reason is passed to warn.
func NewExtractor(kind, model string, warn func(string, ...interface{})) Extractor {
	if kind != ExtractorClaude {
		return RegexExtractor{}
	}
	c, err := NewClaudeExtractor("", model)
	if err != nil {
		if warn != nil {
			warn("claude extractor unavailable, using regex: %v", err)
		}
		return RegexExtractor{}
	}
	return c
}
