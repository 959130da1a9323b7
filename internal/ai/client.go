// Package ai provides the model client used by the run engine. The
// production client is backed by gollm, which abstracts over provider
// APIs; the engine depends only on the narrow Client interface so tests
// can script responses.
package ai

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/teilomillet/gollm"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// ModelConfig carries per-call overrides. Zero values fall back to the
// client's configured defaults. Provider, model, and temperature are
// fixed at client construction; a collaborator that needs different
// ones builds its own client.
type ModelConfig struct {
	// MaxTokens caps the completion length for this call.
	MaxTokens int
}

// Completion is the result of a one-shot model call. Token counts are
// estimates: gollm does not expose provider usage numbers.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Chunk is one fragment of a streamed completion. A non-nil Err ends
// the stream.
type Chunk struct {
	Text string
	Err  error
}

// Client is the model interface the run engine depends on.
type Client interface {
	CompleteOneShot(ctx context.Context, system, user string, cfg ModelConfig) (Completion, error)
}

// Streamer is implemented by clients that can stream a reply. The
// engine uses it for the direct-response path only; structured calls
// always go through CompleteOneShot.
type Streamer interface {
	StreamOneShot(ctx context.Context, system, user string, cfg ModelConfig) (<-chan Chunk, error)
}

// GollmClient is the production Client backed by a gollm.LLM.
type GollmClient struct {
	llm           gollm.LLM
	provider      string
	model         string
	timeout       time.Duration
	charsPerToken int
}

var (
	_ Client   = (*GollmClient)(nil)
	_ Streamer = (*GollmClient)(nil)
)

// NewClient builds the production model client from configuration.
// When cfg.LLM.APIKey is empty, gollm falls back to the provider's
// environment variable.
func NewClient(cfg *config.Config) (*GollmClient, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	llmCfg := cfg.LLM

	opts := []gollm.ConfigOption{
		gollm.SetProvider(llmCfg.Provider),
		gollm.SetModel(llmCfg.Model),
		gollm.SetMaxTokens(llmCfg.MaxTokens),
		gollm.SetTemperature(llmCfg.Temperature),
		// Retries live in internal/agent/retry where cancellation and
		// response-acceptance policy are applied.
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if llmCfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(llmCfg.APIKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, apperrors.NewLLMError("create model client", err).
			WithProvider(llmCfg.Provider).
			WithModel(llmCfg.Model)
	}

	charsPerToken := cfg.Context.CharsPerToken
	if charsPerToken < 1 {
		charsPerToken = 4
	}

	return &GollmClient{
		llm:           llm,
		provider:      llmCfg.Provider,
		model:         llmCfg.Model,
		timeout:       llmCfg.Timeout(),
		charsPerToken: charsPerToken,
	}, nil
}

// CompleteOneShot sends a single prompt and returns the full response.
func (c *GollmClient) CompleteOneShot(ctx context.Context, system, user string, cfg ModelConfig) (Completion, error) {
	prompt := c.buildPrompt(system, user, cfg)

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	text, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return Completion{}, c.wrapError("completion failed", err)
	}

	return c.completion(system, user, text), nil
}

// StreamOneShot sends a single prompt and streams the response. When
// the underlying provider cannot stream, the full response arrives as
// one chunk. The returned channel is closed when the stream ends.
func (c *GollmClient) StreamOneShot(ctx context.Context, system, user string, cfg ModelConfig) (<-chan Chunk, error) {
	prompt := c.buildPrompt(system, user, cfg)

	ch := make(chan Chunk, 16)

	if !c.llm.SupportsStreaming() {
		go func() {
			defer close(ch)
			genCtx, cancel := c.callContext(ctx)
			defer cancel()

			text, err := c.llm.Generate(genCtx, prompt)
			if err != nil {
				ch <- Chunk{Err: c.wrapError("completion failed", err)}
				return
			}
			ch <- Chunk{Text: text}
		}()
		return ch, nil
	}

	streamCtx, cancel := c.callContext(ctx)
	stream, err := c.llm.Stream(streamCtx, prompt)
	if err != nil {
		cancel()
		return nil, c.wrapError("start stream", err)
	}

	go func() {
		defer close(ch)
		defer cancel()
		defer stream.Close()

		for {
			token, err := stream.Next(streamCtx)
			if err != nil {
				if !apperrors.Is(err, io.EOF) {
					ch <- Chunk{Err: c.wrapError("stream failed", err)}
				}
				return
			}
			if token == nil || token.Text == "" {
				continue
			}
			ch <- Chunk{Text: token.Text}
		}
	}()

	return ch, nil
}

// buildPrompt assembles the gollm prompt for one call.
func (c *GollmClient) buildPrompt(system, user string, cfg ModelConfig) *gollm.Prompt {
	var opts []gollm.PromptOption
	if strings.TrimSpace(system) != "" {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(system), gollm.CacheTypeEphemeral))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, gollm.WithMaxLength(cfg.MaxTokens))
	}
	return gollm.NewPrompt(user, opts...)
}

// callContext applies the configured per-call timeout.
func (c *GollmClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// completion builds the Completion with estimated token counts.
func (c *GollmClient) completion(system, user, text string) Completion {
	return Completion{
		Text:             text,
		PromptTokens:     (len(system) + len(user)) / c.charsPerToken,
		CompletionTokens: len(text) / c.charsPerToken,
	}
}

// wrapError translates a provider failure into the domain error
// taxonomy. Context cancellation and deadline errors pass through
// unwrapped so callers can match them directly.
func (c *GollmClient) wrapError(op string, err error) error {
	if apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewLLMError(op, err).
		WithProvider(c.provider).
		WithModel(c.model).
		WithRetryable(retryableMessage(err.Error()))
}

// retryableMessage reports whether a provider error message looks
// transient. Provider SDKs collapse HTTP failures into strings, so
// classification is by message content.
func retryableMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, marker := range []string{
		"429", "rate limit",
		"500", "502", "503", "internal server",
		"overloaded", "temporarily unavailable",
		"timeout", "deadline",
		"connection reset", "connection refused", "broken pipe",
	} {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
