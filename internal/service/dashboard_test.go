package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/cache"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/filter"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/service"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/state"
)

// fakeSource 可控的状态服务桩
type fakeSource struct {
	mu      sync.Mutex
	current []models.OccupancyRecord
	history map[string][]models.OccupancyRecord
	block   chan struct{} // 非 nil 时 HistoryFor 阻塞等待
	err     error
}

func (f *fakeSource) CurrentState(ctx context.Context, q string) ([]models.OccupancyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.current, nil
}

func (f *fakeSource) HistoryFor(ctx context.Context, itemID string, from, to *time.Time) ([]models.OccupancyRecord, error) {
	f.mu.Lock()
	block := f.block
	err := f.err
	history := f.history[itemID]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

type fakeIdentities struct {
	records []models.IdentityRecord
	err     error
}

func (f *fakeIdentities) ListIDsForTag(ctx context.Context, tag string) ([]models.IdentityRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", filter.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

type fixture struct {
	dashboard *service.Dashboard
	store     *state.Store
	source    *fakeSource
	kv        *fakeKV
}

func newFixture(t *testing.T, source *fakeSource, identities *fakeIdentities) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := state.NewStore(state.State{}, logger)
	kv := newFakeKV()
	settings := filter.NewSettingsStore(kv, filter.Defaults{
		ItemTypeTags: []string{"tag1", "tag2"},
		PageSize:     10,
	}, logger)
	idCache := cache.NewIdentityCache(func(ctx context.Context, key string) (*models.IdentityRecord, error) {
		return nil, errors.New("offline")
	}, logger)

	return &fixture{
		dashboard: service.NewDashboard(store, source, identities, idCache, settings, "location", logger),
		store:     store,
		source:    source,
		kv:        kv,
	}
}

func TestDashboard_LoadSnapshotReplacesState(t *testing.T) {
	t0 := time.Now().UTC()
	source := &fakeSource{current: []models.OccupancyRecord{
		{ItemID: "tag1@1", LocationLink: "A", Start: t0},
		{ItemID: "tag1@2", LocationLink: "B", Start: t0},
		{ItemID: "tag2@1", LocationLink: "A", Start: t0, Quantity: models.IntPtr(5)},
	}}
	fx := newFixture(t, source, &fakeIdentities{})

	require.NoError(t, fx.dashboard.LoadSnapshot(context.Background(), ""))
	require.Len(t, fx.store.Snapshot().ItemsState, 3)
}

func TestDashboard_SnapshotThenUpdateKeepsThreeRecords(t *testing.T) {
	// 端到端：快照 3 条 + 同位置数量 5→8 的 update
	t0 := time.Now().UTC()
	source := &fakeSource{current: []models.OccupancyRecord{
		{ItemID: "tag2@1", LocationLink: "A", Start: t0, Quantity: models.IntPtr(5)},
		{ItemID: "tag1@1", LocationLink: "B", Start: t0},
		{ItemID: "tag1@2", LocationLink: "C", Start: t0},
	}}
	fx := newFixture(t, source, &fakeIdentities{})
	require.NoError(t, fx.dashboard.LoadSnapshot(context.Background(), ""))

	fx.store.Dispatch(state.ItemUpdated{Entry: models.OccupancyRecord{
		ItemID: "tag2@1", LocationLink: "A", Start: t0.Add(time.Minute), Quantity: models.IntPtr(8),
	}})

	snap := fx.store.Snapshot()
	require.Len(t, snap.ItemsState, 3)
	require.Equal(t, "tag2@1", snap.ItemsState[0].ItemID)
	require.Equal(t, 8, *snap.ItemsState[0].Quantity)
}

func TestDashboard_LoadSnapshotFailureLeavesStateUntouched(t *testing.T) {
	t0 := time.Now().UTC()
	source := &fakeSource{current: []models.OccupancyRecord{{ItemID: "tag1@1", LocationLink: "A", Start: t0}}}
	fx := newFixture(t, source, &fakeIdentities{})
	require.NoError(t, fx.dashboard.LoadSnapshot(context.Background(), ""))

	source.mu.Lock()
	source.err = errors.New("state service down")
	source.mu.Unlock()

	require.Error(t, fx.dashboard.LoadSnapshot(context.Background(), ""))
	require.Len(t, fx.store.Snapshot().ItemsState, 1)
}

func TestDashboard_FocusItemLoadsHistory(t *testing.T) {
	t0 := time.Now().UTC()
	source := &fakeSource{history: map[string][]models.OccupancyRecord{
		"tag1@1": {{ItemID: "tag1@1", LocationLink: "A", Start: t0}},
	}}
	fx := newFixture(t, source, &fakeIdentities{})

	require.NoError(t, fx.dashboard.FocusItem(context.Background(), "tag1@1", nil, nil))

	snap := fx.store.Snapshot()
	require.Equal(t, "tag1@1", snap.CurrentItem)
	require.Len(t, snap.ItemHistory, 1)

	phase, err := fx.dashboard.HistoryPhase()
	require.Equal(t, service.Loaded, phase)
	require.NoError(t, err)
}

func TestDashboard_FocusItemFailureSetsErrorPhase(t *testing.T) {
	source := &fakeSource{err: errors.New("history unavailable")}
	fx := newFixture(t, source, &fakeIdentities{})

	require.Error(t, fx.dashboard.FocusItem(context.Background(), "tag1@1", nil, nil))

	phase, err := fx.dashboard.HistoryPhase()
	require.Equal(t, service.LoadFailed, phase)
	require.Error(t, err)
	require.Empty(t, fx.store.Snapshot().ItemHistory)
}

func TestDashboard_StaleHistoryCompletionIsDropped(t *testing.T) {
	t0 := time.Now().UTC()
	block := make(chan struct{})
	source := &fakeSource{
		block: block,
		history: map[string][]models.OccupancyRecord{
			"slow@1": {{ItemID: "slow@1", LocationLink: "A", Start: t0}},
			"fast@1": {{ItemID: "fast@1", LocationLink: "B", Start: t0}},
		},
	}
	fx := newFixture(t, source, &fakeIdentities{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- fx.dashboard.FocusItem(context.Background(), "slow@1", nil, nil)
	}()

	// 等第一个请求进入加载中，再发起取代它的请求
	require.Eventually(t, func() bool {
		phase, _ := fx.dashboard.HistoryPhase()
		return phase == service.Loading
	}, time.Second, 5*time.Millisecond)

	source.mu.Lock()
	source.block = nil
	source.mu.Unlock()
	require.NoError(t, fx.dashboard.FocusItem(context.Background(), "fast@1", nil, nil))

	close(block)
	require.ErrorIs(t, <-firstDone, service.ErrSuperseded)

	// 旧结果不得覆盖新状态
	snap := fx.store.Snapshot()
	require.Equal(t, "fast@1", snap.CurrentItem)
	require.Equal(t, "fast@1", snap.ItemHistory[0].ItemID)
}

func TestDashboard_OverviewGrid(t *testing.T) {
	t0 := time.Now().UTC()
	source := &fakeSource{}
	identities := &fakeIdentities{records: []models.IdentityRecord{
		{ID: "A", Name: "Goods In"},
		{ID: "B", Name: "Assembly"},
	}}
	fx := newFixture(t, source, identities)

	fx.store.Dispatch(state.SetItems{Items: []models.OccupancyRecord{
		{ItemID: "tag1@1", LocationLink: "A", Start: t0},
		{ItemID: "tag1@2", LocationLink: "A", Start: t0},
		{ItemID: "tag1@3", LocationLink: "B", Start: t0},
		{ItemID: "tag9@1", LocationLink: "A", Start: t0}, // 类型不在过滤器里
		{ItemID: "tag1@4", LocationLink: "C", Start: t0}, // 位置不显示
	}})

	grid, err := fx.dashboard.OverviewGrid(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, filter.LocationFilter{"A", "B"}, filter.LocationFilter(grid.Locations))
	require.Equal(t, 1, grid.Pages)
	require.Len(t, grid.Rows, 2)
	require.Equal(t, "tag1@1", grid.Rows[0][0].ItemID)
	require.Equal(t, "tag1@3", grid.Rows[0][1].ItemID)
	require.Nil(t, grid.Rows[1][1])
}

func TestDashboard_OverviewGridHonoursPersistedLocationOrder(t *testing.T) {
	t0 := time.Now().UTC()
	identities := &fakeIdentities{records: []models.IdentityRecord{{ID: "A"}, {ID: "B"}}}
	fx := newFixture(t, &fakeSource{}, identities)

	// 持久偏好颠倒列序
	require.NoError(t, fx.kv.Set(context.Background(), filter.KeyShownLocations, `["B","A"]`))

	fx.store.Dispatch(state.SetItems{Items: []models.OccupancyRecord{
		{ItemID: "tag1@1", LocationLink: "A", Start: t0},
	}})

	grid, err := fx.dashboard.OverviewGrid(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "A"}, grid.Locations)
	require.Equal(t, "tag1@1", grid.Rows[0][1].ItemID)
}

func TestDashboard_ResolveNameFallsBackToID(t *testing.T) {
	fx := newFixture(t, &fakeSource{}, &fakeIdentities{})
	// 身份服务不可达：占位呈现标识符本身，不上抛
	require.Equal(t, "tag1@1", fx.dashboard.ResolveName("tag1@1"))
}
