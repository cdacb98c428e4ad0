package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, ok, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "r1", runs.Progress{Completed: 3, Total: 9, Status: runs.StatusRunning}))
	p, ok, _ := m.Get(ctx, "r1")
	assert.True(t, ok)
	assert.Equal(t, 3, p.Completed)

	require.NoError(t, m.Remove(ctx, "r1"))
	_, ok, _ = m.Get(ctx, "r1")
	assert.False(t, ok)
}

func TestMemoryConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i <= 100; i++ {
			_ = m.Set(ctx, "r1", runs.Progress{Completed: i, Total: 100, Status: runs.StatusRunning})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := -1
			for i := 0; i < 200; i++ {
				p, ok, _ := m.Get(ctx, "r1")
				if ok {
					assert.GreaterOrEqual(t, p.Completed, prev)
					prev = p.Completed
				}
			}
		}()
	}
	wg.Wait()
}

func TestWatchDetachesOnTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "r1", runs.Progress{Completed: 0, Total: 6, Status: runs.StatusRunning}))

	var seen []runs.Progress
	step := 0
	err := Watch(ctx, m, "r1", time.Millisecond, func(p runs.Progress) error {
		seen = append(seen, p)
		step++
		switch step {
		case 1:
			_ = m.Set(ctx, "r1", runs.Progress{Completed: 3, Total: 6, Status: runs.StatusRunning})
		case 2:
			_ = m.Set(ctx, "r1", runs.Progress{Completed: 6, Total: 6, Status: runs.StatusComplete})
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, runs.StatusComplete, seen[2].Status)
}

func TestWatchStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Watch(ctx, NewMemory(), "missing", time.Millisecond, func(runs.Progress) error {
		t.Fatal("nothing to emit")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyAndDecode(t *testing.T) {
	assert.Equal(t, "synthpanel:progress:r1", Key("r1"))
	p, err := decode([]byte(`{"completed":2,"total":4,"status":"failed"}`))
	require.NoError(t, err)
	assert.Equal(t, runs.Progress{Completed: 2, Total: 4, Status: runs.StatusFailed}, p)
	_, err = decode([]byte(`nope`))
	assert.Error(t, err)
}
