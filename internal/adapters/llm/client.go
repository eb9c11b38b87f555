package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"freshlistings/internal/adapters/observability"
	"freshlistings/internal/domain"
)

// Completer produces raw model text and exposes a response cache.
type Completer interface {
	Complete(ctx context.Context, model domain.ModelID, system, user string) (string, error)
	Recall(ctx context.Context, key string) (string, bool)
	Remember(ctx context.Context, key, raw string)
}

type Client struct {
	reg   *Registry
	cache domain.Cache
}

// NewClient returns a Completer over reg. cache may be nil.
func NewClient(reg *Registry, cache domain.Cache) *Client {
	return &Client{reg: reg, cache: cache}
}

func (c *Client) Registry() *Registry { return c.reg }

func (c *Client) Complete(ctx context.Context, model domain.ModelID, system, user string) (string, error) {
	m, err := c.reg.Model(model)
	if err != nil {
		return "", err
	}
	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(user)}},
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		observability.ObserveExternal("llm", string(model), 0, time.Since(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		log.Warn().Err(err).Str("model", string(model)).Msg("llm generate failed")
		return "", fmt.Errorf("%w: model %s", domain.ErrUpstream, model)
	}
	observability.ObserveExternal("llm", string(model), 200, time.Since(start))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model %s returned no choices", domain.ErrUpstream, model)
	}
	return resp.Choices[0].Content, nil
}

func (c *Client) Recall(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	var raw string
	ok, err := c.cache.Get(ctx, key, &raw)
	if err != nil {
		log.Debug().Err(err).Msg("llm cache read failed, treating as miss")
		return "", false
	}
	return raw, ok
}

func (c *Client) Remember(ctx context.Context, key, raw string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, 0); err != nil {
		log.Debug().Err(err).Msg("llm cache write failed")
	}
}
