// Package oracle abstracts the text-completion service used for planning
// questions and writing free-form answers.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Oracle is a single-attempt text completion service.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteJSON asks for output that conforms to schema.
	CompleteJSON(ctx context.Context, prompt string, schema *Schema) (string, error)
}

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema describes structured output independently of any provider.
type Schema struct {
	Type        Type
	Description string
	Enum        []string
	Items       *Schema
	Properties  map[string]*Schema
	Required    []string
}

var ErrEmptyResponse = errors.New("oracle returned no text")

// TransportError wraps any failure reaching the oracle. Callers do not retry.
type TransportError struct {
	Call string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oracle %s call failed: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Call runs fn under its own timeout and normalizes failures into *TransportError.
func Call(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := fn(ctx)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return "", err
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", &TransportError{Call: name, Err: err}
	}
	return out, nil
}

// StripFences removes a Markdown code fence around a JSON payload.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
