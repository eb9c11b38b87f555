// Package llm runs schema-constrained extractions against hosted and self-hosted models.
package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"freshlistings/internal/domain"
)

type Backend string

const (
	BackendGoogleAI Backend = "googleai"
	BackendOllama   Backend = "ollama"
	BackendOpenAI   Backend = "openai"
)

// ModelBinding maps a public model id onto a backend and its provider-side model name.
type ModelBinding struct {
	ID      domain.ModelID
	Backend Backend
	Model   string
	BaseURL string
}

type Credentials struct {
	GoogleAPIKey  string
	OllamaURL     string
	OpenAIKey     string
	OpenAIBaseURL string
}

const DefaultModel domain.ModelID = "gemini-2.5-flash"

// DefaultBindings lists the built-in model ids.
func DefaultBindings() []ModelBinding {
	return []ModelBinding{
		{ID: "gemini-2.5-flash", Backend: BackendGoogleAI, Model: "gemini-2.5-flash"},
		{ID: "gemini-2.5-flash-lite", Backend: BackendGoogleAI, Model: "gemini-2.5-flash-lite"},
		{ID: "ollama-ministral-8b", Backend: BackendOllama, Model: "nchapman/ministral-8b-instruct-2410:8b"},
		{ID: "qwen3-8b", Backend: BackendOllama, Model: "qwen3:8b"},
		{ID: "gpt-4o-mini", Backend: BackendOpenAI, Model: "gpt-4o-mini"},
	}
}

// Registry is the closed set of models a request may name.
type Registry struct {
	models map[domain.ModelID]llms.Model
	def    domain.ModelID
}

// NewRegistry builds a client per binding. Bindings whose backend has no credentials are
// skipped; a missing default is a configuration error.
func NewRegistry(ctx context.Context, bindings []ModelBinding, creds Credentials, def domain.ModelID) (*Registry, error) {
	models := make(map[domain.ModelID]llms.Model, len(bindings))
	for _, b := range bindings {
		m, err := newModel(ctx, b, creds)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", b.ID, err)
		}
		if m == nil {
			log.Warn().Str("model", string(b.ID)).Str("backend", string(b.Backend)).Msg("no credentials for backend, model disabled")
			continue
		}
		models[b.ID] = m
	}
	return NewRegistryFromModels(models, def)
}

// NewRegistryFromModels wraps ready-made models.
func NewRegistryFromModels(models map[domain.ModelID]llms.Model, def domain.ModelID) (*Registry, error) {
	if _, ok := models[def]; !ok {
		return nil, fmt.Errorf("%w: default model %q is not available", domain.ErrUnknownModel, def)
	}
	return &Registry{models: models, def: def}, nil
}

func newModel(ctx context.Context, b ModelBinding, creds Credentials) (llms.Model, error) {
	switch b.Backend {
	case BackendGoogleAI:
		if creds.GoogleAPIKey == "" {
			return nil, nil
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(creds.GoogleAPIKey),
			googleai.WithDefaultModel(b.Model),
		)
	case BackendOllama:
		url := b.BaseURL
		if url == "" {
			url = creds.OllamaURL
		}
		if url == "" {
			return nil, nil
		}
		return ollama.New(
			ollama.WithModel(b.Model),
			ollama.WithServerURL(url),
			ollama.WithFormat("json"),
		)
	case BackendOpenAI:
		if creds.OpenAIKey == "" && creds.OpenAIBaseURL == "" {
			return nil, nil
		}
		opts := []openai.Option{openai.WithModel(b.Model)}
		// local OpenAI-compatible servers accept any token
		token := creds.OpenAIKey
		if token == "" {
			token = "none"
		}
		opts = append(opts, openai.WithToken(token))
		if base := firstNonEmpty(b.BaseURL, creds.OpenAIBaseURL); base != "" {
			opts = append(opts, openai.WithBaseURL(base))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q", b.Backend)
	}
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// Model returns the client bound to id. Unknown ids are never defaulted.
func (r *Registry) Model(id domain.ModelID) (llms.Model, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownModel, id)
	}
	return m, nil
}

func (r *Registry) Has(id domain.ModelID) bool {
	_, ok := r.models[id]
	return ok
}

func (r *Registry) Default() domain.ModelID { return r.def }

func (r *Registry) IDs() []domain.ModelID {
	ids := make([]domain.ModelID, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
