package filter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/filter"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

func occ(itemID, loc string) models.OccupancyRecord {
	return models.OccupancyRecord{ItemID: itemID, LocationLink: loc}
}

func TestVisible_Predicate(t *testing.T) {
	itemFilter := filter.ItemFilter{
		"tag1": {All: true},
		"tag2": {IDs: []string{"tag2@5"}},
	}
	locationFilter := filter.LocationFilter{"A", "B"}

	require.True(t, filter.Visible(occ("tag2@5", "A"), itemFilter, locationFilter))
	require.False(t, filter.Visible(occ("tag2@6", "A"), itemFilter, locationFilter))
	require.False(t, filter.Visible(occ("tag1@1", "C"), itemFilter, locationFilter))
	require.True(t, filter.Visible(occ("tag1@1", "B"), itemFilter, locationFilter))
	// 过滤器中没有条目的类型一律排除
	require.False(t, filter.Visible(occ("tag3@1", "A"), itemFilter, locationFilter))
}

func TestVisible_ExplicitFalseEntryExcludes(t *testing.T) {
	var itemFilter filter.ItemFilter
	require.NoError(t, json.Unmarshal([]byte(`{"tag1": false, "tag2": 17}`), &itemFilter))

	require.False(t, filter.Visible(occ("tag1@1", "A"), itemFilter, filter.LocationFilter{"A"}))
	require.False(t, filter.Visible(occ("tag2@1", "A"), itemFilter, filter.LocationFilter{"A"}))
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	f := filter.ItemFilter{
		"tag1": {All: true},
		"tag2": {IDs: []string{"tag2@5", "tag2@9"}},
	}

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded filter.ItemFilter
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, f, decoded)
}

func TestApply_KeepsOrder(t *testing.T) {
	itemFilter := filter.ItemFilter{"tag1": {All: true}}
	locationFilter := filter.LocationFilter{"A"}
	records := []models.OccupancyRecord{
		occ("tag1@1", "A"),
		occ("tag1@2", "B"),
		occ("tag2@1", "A"),
		occ("tag1@3", "A"),
	}

	visible := filter.Apply(records, itemFilter, locationFilter)

	require.Len(t, visible, 2)
	require.Equal(t, "tag1@1", visible[0].ItemID)
	require.Equal(t, "tag1@3", visible[1].ItemID)
}

func TestDefaultItemFilter(t *testing.T) {
	f := filter.DefaultItemFilter([]string{"tag1", "tag2"})
	require.True(t, f["tag1"].All)
	require.True(t, f["tag2"].All)
	require.Len(t, f, 2)
}
