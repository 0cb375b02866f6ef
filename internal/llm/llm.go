// Package llm provides the completion gateway used by every analysis
// stage: a narrow Completer interface over the Anthropic API plus a
// retrying wrapper with exponential backoff and per-call timeouts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const defaultSystemPrompt = "You are a market intelligence analyst covering Uganda's fintech sector. Respond with strict JSON only unless the prompt asks for prose."

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

// Completer is the single entry point stages use to talk to the model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCompleter struct {
	messages  AnthropicMessager
	model     anthropic.Model
	maxTokens int64
	system    string
}

func NewAnthropicCompleterFromEnv(model string, maxTokens int64) (*AnthropicCompleter, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	m := anthropic.ModelClaudeSonnet4_20250514
	if strings.TrimSpace(model) != "" {
		m = anthropic.Model(model)
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicCompleter{
		messages:  newAnthropicClient(apiKey),
		model:     m,
		maxTokens: maxTokens,
		system:    defaultSystemPrompt,
	}, nil
}

func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: a.system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// Gateway wraps a Completer with transport retries. Timeouts, rate
// limits, and server errors are retried with 1s then 2s backoff; the
// last error is returned to the caller after the attempt budget is
// spent. Client errors fail immediately.
type Gateway struct {
	completer Completer
	attempts  int
	timeout   time.Duration
	sleep     func(time.Duration)
	logger    *zap.Logger
}

func NewGateway(completer Completer, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		completer: completer,
		attempts:  3,
		timeout:   timeout,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			g.sleep(backoffDelay(attempt))
		}
		callCtx := ctx
		cancel := func() {}
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		out, err := g.completer.Complete(callCtx, prompt)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		class := classifyTransportError(err)
		if class == failureClient || ctx.Err() != nil {
			break
		}
		g.logger.Warn("completion attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", fmt.Errorf("completion failed after retries: %w", lastErr)
}

// backoffDelay returns 2^attempt seconds for the attempt about to run,
// so the first retry waits 1s and the second 2s.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, "invalid request"):
		return failureClient
	default:
		return failureServer
	}
}
