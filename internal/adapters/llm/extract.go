package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"freshlistings/internal/domain"
)

// Schema describes the JSON object a model must return and how to check it.
type Schema[T any] struct {
	Name     string
	JSON     string
	Validate func(*T) error
}

// Result carries the parsed value, or nil when the output did not fit the schema.
type Result[T any] struct {
	Parsed *T
	Raw    string
}

// Extract asks model for a value shaped by s. Schema violations yield a nil Parsed with a nil
// error; transport failures and unknown models are returned as errors.
func Extract[T any](ctx context.Context, c Completer, s Schema[T], system, user string, model domain.ModelID) (Result[T], error) {
	prompt := systemPrompt(system, s.JSON)
	key := CacheKey(model, prompt, user, s.Name, s.JSON)

	if raw, ok := c.Recall(ctx, key); ok {
		if v, err := s.decode(raw); err == nil {
			return Result[T]{Parsed: v, Raw: raw}, nil
		}
	}

	raw, err := c.Complete(ctx, model, prompt, user)
	if err != nil {
		return Result[T]{}, err
	}
	v, err := s.decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("schema", s.Name).Str("model", string(model)).Str("raw", truncate(raw, 512)).Msg("model output rejected")
		return Result[T]{Raw: raw}, nil
	}
	c.Remember(ctx, key, raw)
	return Result[T]{Parsed: v, Raw: raw}, nil
}

func (s Schema[T]) decode(raw string) (*T, error) {
	var v T
	if err := decodeJSON(raw, &v); err != nil {
		return nil, err
	}
	if s.Validate != nil {
		if err := s.Validate(&v); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

func systemPrompt(system, schema string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\nRespond with a single JSON object that conforms to this JSON schema. Omit optional fields you cannot infer.\n")
	b.WriteString(schema)
	return b.String()
}

// CacheKey is llm:<model>:<sha256 of the prompt parts and schema>.
func CacheKey(model domain.ModelID, system, user, schemaName, schema string) string {
	h := sha256.New()
	for _, part := range []string{system, user, schemaName, schema} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "llm:" + string(model) + ":" + hex.EncodeToString(h.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
