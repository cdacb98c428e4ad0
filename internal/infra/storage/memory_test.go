package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	data := []byte("hello")
	require.NoError(t, m.Put(ctx, "acme/runs/r1/00-a.txt", "text/plain", data))
	data[0] = 'j'

	got, err := m.Fetch(ctx, "acme/runs/r1/00-a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = m.Fetch(ctx, "missing")
	assert.Error(t, err)
}
