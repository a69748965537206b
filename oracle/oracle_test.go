package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWrapsFailures(t *testing.T) {
	_, err := Call(context.Background(), "plan", time.Second, func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "plan", te.Call)
	assert.False(t, te.Timeout())
}

func TestCallTimeout(t *testing.T) {
	_, err := Call(context.Background(), "answer", 10*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", errors.New("stream closed")
	})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
}

func TestCallEmptyResponse(t *testing.T) {
	_, err := Call(context.Background(), "plan", 0, func(ctx context.Context) (string, error) {
		return "  ", nil
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	out, err := Call(context.Background(), "plan", 0, func(ctx context.Context) (string, error) {
		return "{}", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences(` {"a":1} `))
}

func TestToGenaiSchema(t *testing.T) {
	s := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"kind": {Type: TypeString, Enum: []string{"a", "b"}},
			"tags": {Type: TypeArray, Items: &Schema{Type: TypeString}},
			"year": {Type: TypeInteger},
		},
		Required: []string{"kind", "tags", "year"},
	}
	g := toGenaiSchema(s)
	require.NotNil(t, g)
	assert.Equal(t, genai.TypeObject, g.Type)
	assert.Equal(t, []string{"a", "b"}, g.Properties["kind"].Enum)
	assert.Equal(t, "enum", g.Properties["kind"].Format)
	assert.Empty(t, g.Properties["year"].Format)
	assert.Equal(t, genai.TypeString, g.Properties["tags"].Items.Type)
	assert.Equal(t, genai.TypeInteger, g.Properties["year"].Type)
	assert.Len(t, g.Required, 3)
}
