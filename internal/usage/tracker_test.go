package usage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
)

func TestIsUsedWithoutUsageDocument(t *testing.T) {
	tracker := New(store.NewMemoryStore())

	used, err := tracker.IsUsed(context.Background(), "acme", model.ItemID("https://example.com/a"))
	require.NoError(t, err)
	assert.False(t, used)
}

func TestMarkUsedThenCheck(t *testing.T) {
	tracker := New(store.NewMemoryStore())
	ctx := context.Background()
	itemID := model.ItemID("https://example.com/a")

	rec, err := tracker.MarkUsed(ctx, "acme", itemID, "2026-W35")
	require.NoError(t, err)
	assert.Equal(t, itemID, rec.ItemID)
	assert.Equal(t, "2026-W35", rec.NewsletterRef)

	used, err := tracker.IsUsed(ctx, "acme", itemID)
	require.NoError(t, err)
	assert.True(t, used)

	_, err = tracker.MarkUsed(ctx, "acme", itemID, "2026-W36")
	assert.ErrorIs(t, err, model.ErrAlreadyUsed)
}

func TestMarkManyUsedAllOrNothing(t *testing.T) {
	tracker := New(store.NewMemoryStore())
	ctx := context.Background()

	items := []string{"item1", "item2", "item3", "item4", "item5"}
	_, err := tracker.MarkUsed(ctx, "acme", "item3", "2026-W34")
	require.NoError(t, err)

	_, err = tracker.MarkManyUsed(ctx, "acme", items, "2026-W35")
	assert.ErrorIs(t, err, model.ErrAlreadyUsed)

	// Nothing from the failed batch leaked through.
	for _, id := range []string{"item1", "item2", "item4", "item5"} {
		used, err := tracker.IsUsed(ctx, "acme", id)
		require.NoError(t, err)
		assert.False(t, used, "item %s", id)
	}
}

func TestMarkManyUsedBatch(t *testing.T) {
	tracker := New(store.NewMemoryStore())
	ctx := context.Background()

	items := []string{"item1", "item2", "item3"}
	records, err := tracker.MarkManyUsed(ctx, "acme", items, "2026-W35")
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, id := range items {
		used, err := tracker.IsUsed(ctx, "acme", id)
		require.NoError(t, err)
		assert.True(t, used)
	}
}

func TestMarkManyUsedCollapsesDuplicateItems(t *testing.T) {
	docs := store.NewMemoryStore()
	tracker := New(docs)
	ctx := context.Background()

	records, err := tracker.MarkManyUsed(ctx, "acme", []string{"item1", "item1", "item2"}, "2026-W35")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "item1", records[0].ItemID)
	assert.Equal(t, "item2", records[1].ItemID)

	// One record per (tenant, item) in the stored log.
	doc, err := docs.Read(ctx, "acme", model.KindUsage)
	require.NoError(t, err)
	var usageLog model.UsageLog
	require.NoError(t, json.Unmarshal(doc.Content, &usageLog))
	assert.Len(t, usageLog.Items, 2)
}

func TestMarkManyUsedEmptySelection(t *testing.T) {
	tracker := New(store.NewMemoryStore())

	_, err := tracker.MarkManyUsed(context.Background(), "acme", nil, "2026-W35")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"item_ids"}, verr.Fields)
}

func TestUsageIsPerTenant(t *testing.T) {
	tracker := New(store.NewMemoryStore())
	ctx := context.Background()

	_, err := tracker.MarkUsed(ctx, "acme", "shared-item", "2026-W35")
	require.NoError(t, err)

	used, err := tracker.IsUsed(ctx, "zen", "shared-item")
	require.NoError(t, err)
	assert.False(t, used)
}
