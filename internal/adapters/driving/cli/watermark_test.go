package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/harvester/internal/adapters/driven/state/memory"
	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
)

func setupWatermarkTest(store driven.WatermarkStore) func() {
	oldStore := watermarkStore
	watermarkStore = store
	return func() {
		watermarkStore = oldStore
	}
}

func TestWatermarkShow_Empty(t *testing.T) {
	cleanup := setupWatermarkTest(memory.NewStore())
	defer cleanup()

	out, err := executeCommand(t, "watermark", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No watermarks recorded yet.")
}

func TestWatermarkShow_SortedByKey(t *testing.T) {
	cleanup := setupWatermarkTest(memory.NewStoreWith(domain.WatermarkState{
		"rentals": {MaxDate: "2024-01-15"},
		"sales":   {MaxDate: "2024-01-10"},
	}))
	defer cleanup()

	out, err := executeCommand(t, "watermark", "show")
	require.NoError(t, err)
	assert.Regexp(t, `(?s)rentals\s+2024-01-15.*sales\s+2024-01-10`, out)
}

func TestWatermarkShow_IsDefaultSubcommand(t *testing.T) {
	cleanup := setupWatermarkTest(memory.NewStoreWith(domain.WatermarkState{
		"sales": {MaxDate: "2024-01-10"},
	}))
	defer cleanup()

	out, err := executeCommand(t, "watermark")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-10")
}

func TestWatermarkSet(t *testing.T) {
	store := memory.NewStoreWith(domain.WatermarkState{"sales": {MaxDate: "2024-01-10"}})
	cleanup := setupWatermarkTest(store)
	defer cleanup()

	out, err := executeCommand(t, "watermark", "set", "sales", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Watermark for sales set to 2024-01-01.")

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", state["sales"].MaxDate)
}

func TestWatermarkSet_RejectsBadDate(t *testing.T) {
	store := memory.NewStore()
	cleanup := setupWatermarkTest(store)
	defer cleanup()

	_, err := executeCommand(t, "watermark", "set", "sales", "January 1st")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, store.Saves())
}

func TestWatermarkClear(t *testing.T) {
	store := memory.NewStoreWith(domain.WatermarkState{
		"sales":   {MaxDate: "2024-01-10"},
		"rentals": {MaxDate: "2024-01-15"},
	})
	cleanup := setupWatermarkTest(store)
	defer cleanup()

	out, err := executeCommand(t, "watermark", "clear", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "Watermark for sales cleared.")

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	_, ok := state["sales"]
	assert.False(t, ok)
	assert.Equal(t, "2024-01-15", state["rentals"].MaxDate)
}

func TestWatermarkClear_UnknownDataset(t *testing.T) {
	cleanup := setupWatermarkTest(memory.NewStore())
	defer cleanup()

	_, err := executeCommand(t, "watermark", "clear", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
