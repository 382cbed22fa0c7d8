package memstore

import (
	"context"
	"testing"

	"agentcore/internal/agent/ports"
	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint/storetest"

	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) storage.Store { return New() })
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.Save(ctx, "run", storetest.Make("run", 1, "call_model", ports.UserMessage("hi"))))

	listed, err := store.List(ctx, "run", false)
	require.NoError(t, err)
	listed[0].MessageHistory[0].Content = "mutated"

	again, err := store.List(ctx, "run", false)
	require.NoError(t, err)
	require.Equal(t, "hi", again[0].MessageHistory[0].Content)
}
