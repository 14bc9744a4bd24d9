package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) Dimension() int    { return 1 }
func (c *countingEmbedder) ModelName() string { return "counting" }

func TestWithCache_Hit(t *testing.T) {
	next := &countingEmbedder{}
	e := WithCache(next, 10, time.Minute)

	v1, err := e.Embed(context.Background(), "abc", "")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "abc", "")
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, 1, next.calls)

	// Mutating a returned vector must not poison the cache.
	v2[0] = 99
	v3, _ := e.Embed(context.Background(), "abc", "")
	require.Equal(t, float32(3), v3[0])
}

func TestWithCache_ErrorsNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("boom")}
	e := WithCache(next, 10, time.Minute)

	_, err := e.Embed(context.Background(), "abc", "")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "abc", "")
	require.Error(t, err)
	require.Equal(t, 2, next.calls)
}

func TestWithCache_Disabled(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WithCache(next, 0, time.Minute))
	require.Same(t, next, WithCache(next, 10, 0))
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	a, _ := e.Embed(context.Background(), "OSPF routing areas", "")
	b, _ := e.Embed(context.Background(), "ospf ROUTING areas", "")
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	zero, _ := e.Embed(context.Background(), "", "")
	for _, v := range zero {
		require.Zero(t, v)
	}
}
