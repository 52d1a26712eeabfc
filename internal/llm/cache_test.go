package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCachedEmbedder_SecondCallHitsCache(t *testing.T) {
	inner := &mockEmbedder{}
	c := NewCachedEmbedder(inner)

	first, err := c.Embed(context.Background(), "lehman files for bankruptcy")
	require.NoError(t, err)

	second, err := c.Embed(context.Background(), "lehman files for bankruptcy")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_DistinctTextsDistinctEntries(t *testing.T) {
	inner := &mockEmbedder{}
	c := NewCachedEmbedder(inner)

	_, err := c.Embed(context.Background(), "one")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.callCount())
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("quota exceeded")}
	c := NewCachedEmbedder(inner)

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	// A later retry reaches the backend again
	inner.err = nil
	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	assert.Equal(t, 2, inner.callCount())
}

func TestCachedEmbedder_ConcurrentAccess(t *testing.T) {
	inner := &mockEmbedder{}
	c := NewCachedEmbedder(inner)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := c.Embed(context.Background(), "shared text")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
}
