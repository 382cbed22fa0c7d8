package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrainIsFIFOAndPerRun(t *testing.T) {
	q := New()
	require.True(t, q.Enqueue("a", "first"))
	require.True(t, q.Enqueue("b", "other"))
	require.True(t, q.Enqueue("a", "second"))
	require.False(t, q.Enqueue("a", "  "))

	require.Equal(t, []string{"first", "second"}, q.Peek("a"))
	require.Equal(t, []string{"first", "second"}, q.Drain("a"))
	require.Empty(t, q.Drain("a"))
	require.Equal(t, []string{"other"}, q.Drain("b"))
}

func TestClear(t *testing.T) {
	q := New()
	q.Enqueue("a", "x")
	q.Clear("a")
	require.Empty(t, q.Peek("a"))
}

func TestConcurrentEnqueue(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue("run", fmt.Sprintf("msg-%d", i))
		}()
	}
	wg.Wait()
	require.Len(t, q.Drain("run"), 50)
}
