package filter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/filter"
)

func newStore(kv filter.KVStore) *filter.SettingsStore {
	return filter.NewSettingsStore(kv, filter.Defaults{
		ItemTypeTags:     []string{"tag1", "tag2"},
		LocationTypeTags: []string{"location"},
		PageSize:         10,
	}, zap.NewNop())
}

func TestSettingsStore_ItemFilterDefaultsWhenAbsent(t *testing.T) {
	s := newStore(newFakeKVStore())

	f := s.LoadItemFilter(context.Background())

	require.True(t, f["tag1"].All)
	require.True(t, f["tag2"].All)
}

func TestSettingsStore_ItemFilterRoundTrip(t *testing.T) {
	kv := newFakeKVStore()
	s := newStore(kv)
	ctx := context.Background()

	saved := filter.ItemFilter{
		"tag1": {All: true},
		"tag2": {IDs: []string{"tag2@5"}},
	}
	require.NoError(t, s.SaveItemFilter(ctx, saved))

	loaded := s.LoadItemFilter(ctx)
	require.Equal(t, saved, loaded)
}

func TestSettingsStore_CorruptItemFilterFallsBack(t *testing.T) {
	kv := newFakeKVStore()
	require.NoError(t, kv.Set(context.Background(), filter.KeyItemFilter, "{not json"))
	s := newStore(kv)

	f := s.LoadItemFilter(context.Background())

	// 损坏的持久值静默回退到配置默认，不阻塞加载
	require.True(t, f["tag1"].All)
}

func TestSettingsStore_SaveNilItemFilterResets(t *testing.T) {
	kv := newFakeKVStore()
	s := newStore(kv)
	ctx := context.Background()

	require.NoError(t, s.SaveItemFilter(ctx, filter.ItemFilter{"tag9": {All: true}}))
	require.NoError(t, s.SaveItemFilter(ctx, nil))

	f := s.LoadItemFilter(ctx)
	require.True(t, f["tag1"].All)
	_, ok := f["tag9"]
	require.False(t, ok)
}

func TestSettingsStore_ShownLocationsPreservesOrder(t *testing.T) {
	kv := newFakeKVStore()
	s := newStore(kv)
	ctx := context.Background()

	require.NoError(t, s.SaveShownLocations(ctx, filter.LocationFilter{"C", "A", "B"}))

	locs := s.LoadShownLocations(ctx, []string{"A", "B", "C"})
	require.Equal(t, filter.LocationFilter{"C", "A", "B"}, locs)
}

func TestSettingsStore_ShownLocationsFallback(t *testing.T) {
	s := newStore(newFakeKVStore())

	locs := s.LoadShownLocations(context.Background(), []string{"A", "B"})
	require.Equal(t, filter.LocationFilter{"A", "B"}, locs)
}

func TestSettingsStore_Preferences(t *testing.T) {
	kv := newFakeKVStore()
	s := newStore(kv)
	ctx := context.Background()

	require.Equal(t, 10, s.PageSize(ctx))
	require.True(t, s.ShowIcons(ctx))
	require.True(t, s.UseRelativeTimestamps(ctx))
	require.Nil(t, s.ItemOrdering(ctx))

	require.NoError(t, s.SavePageSize(ctx, 25))
	require.NoError(t, s.SaveShowIcons(ctx, false))
	require.NoError(t, s.SaveUseRelativeTimestamps(ctx, false))
	require.NoError(t, s.SaveItemOrdering(ctx, []string{"tag1@2", "tag1@1"}))

	require.Equal(t, 25, s.PageSize(ctx))
	require.False(t, s.ShowIcons(ctx))
	require.False(t, s.UseRelativeTimestamps(ctx))
	require.Equal(t, []string{"tag1@2", "tag1@1"}, s.ItemOrdering(ctx))
}
