// Package service 组装仪表板核心：快照加载、聚焦物品履历、
// 过滤后的总览网格。消息总线接线在 cmd 层完成。
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/cache"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/filter"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/state"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/views"
)

// ErrSuperseded 履历请求在完成前被更新的请求取代，结果已丢弃
var ErrSuperseded = errors.New("request superseded")

// historyTimeout 履历加载超时（上游未规定，这里补上一个硬超时）
const historyTimeout = 30 * time.Second

// Phase 聚焦物品页的加载状态机
type Phase int

const (
	Unloaded Phase = iota
	Loading
	Loaded
	LoadFailed
)

// StateSource 状态服务查询端（由 client.Client 实现）
type StateSource interface {
	CurrentState(ctx context.Context, searchQuery string) ([]models.OccupancyRecord, error)
	HistoryFor(ctx context.Context, itemID string, from, to *time.Time) ([]models.OccupancyRecord, error)
}

// IdentitySource 身份目录查询端（由 client.Client 实现）
type IdentitySource interface {
	ListIDsForTag(ctx context.Context, tag string) ([]models.IdentityRecord, error)
}

// Dashboard 仪表板核心服务
type Dashboard struct {
	store      *state.Store
	source     StateSource
	identities IdentitySource
	cache      *cache.IdentityCache
	settings   *filter.SettingsStore
	locTag     string
	logger     *zap.Logger

	mu         sync.Mutex
	generation uint64 // 履历请求代数：迟到的完成结果据此判废
	phase      Phase
	phaseErr   error
}

// NewDashboard 创建仪表板服务
func NewDashboard(
	store *state.Store,
	source StateSource,
	identities IdentitySource,
	identityCache *cache.IdentityCache,
	settings *filter.SettingsStore,
	locationTag string,
	logger *zap.Logger,
) *Dashboard {
	return &Dashboard{
		store:      store,
		source:     source,
		identities: identities,
		cache:      identityCache,
		settings:   settings,
		locTag:     locationTag,
		logger:     logger,
	}
}

// LoadSnapshot 全量加载当前状态并整体替换画布
// 失败只影响调用方视图，不触碰既有状态
func (d *Dashboard) LoadSnapshot(ctx context.Context, searchQuery string) error {
	records, err := d.source.CurrentState(ctx, searchQuery)
	if err != nil {
		d.logger.Warn("Snapshot load failed", zap.Error(err))
		return err
	}

	d.store.Dispatch(state.SetItems{Items: records})
	d.logger.Info("Snapshot loaded", zap.Int("records", len(records)))
	return nil
}

// FocusItem 聚焦物品并加载其履历（可选时间范围）
// 同一逻辑资源的旧请求被新请求取代时，旧结果到达后直接丢弃，
// 绝不让旧数据覆盖新状态；被取代的调用返回 ErrSuperseded
func (d *Dashboard) FocusItem(ctx context.Context, itemID string, from, to *time.Time) error {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.phase = Loading
	d.phaseErr = nil
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	history, err := d.source.HistoryFor(ctx, itemID, from, to)

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.generation {
		d.logger.Debug("Dropping stale history load", zap.String("item_id", itemID))
		return ErrSuperseded
	}

	if err != nil {
		d.phase = LoadFailed
		d.phaseErr = err
		d.logger.Warn("History load failed", zap.String("item_id", itemID), zap.Error(err))
		return err
	}

	d.store.Dispatch(state.HistoryLoaded{ItemID: itemID, Dataset: history})
	d.phase = Loaded
	return nil
}

// HistoryPhase 聚焦物品页当前的加载阶段（与失败原因）
// ERROR → LOADING 经再次 FocusItem 完成（手动重试）
func (d *Dashboard) HistoryPhase() (Phase, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase, d.phaseErr
}

// ShownLocations 当前显示的位置序列：持久偏好 → 按配置默认类型查目录
func (d *Dashboard) ShownLocations(ctx context.Context) (filter.LocationFilter, error) {
	var fallback []string
	records, err := d.identities.ListIDsForTag(ctx, d.locTag)
	if err != nil {
		// 目录不可达时仍可用持久偏好渲染
		d.logger.Warn("Location listing failed", zap.Error(err))
	} else {
		for _, r := range records {
			fallback = append(fallback, r.ID)
		}
	}

	locs := d.settings.LoadShownLocations(ctx, fallback)
	if len(locs) == 0 && err != nil {
		return nil, err
	}
	return locs, nil
}

// Grid 总览网格的一页
type Grid struct {
	Locations []string                    // 列序 = 位置过滤顺序
	Rows      [][]*models.OccupancyRecord // 纯按下标对齐的行
	Pages     int
}

// OverviewGrid 计算总览网格：过滤 → 按位置分组 → 各列独立分页 → 转置
// 派生视图在读取时计算，不落地存储
func (d *Dashboard) OverviewGrid(ctx context.Context, page int) (*Grid, error) {
	locations, err := d.ShownLocations(ctx)
	if err != nil {
		return nil, err
	}
	itemFilter := d.settings.LoadItemFilter(ctx)
	pageSize := d.settings.PageSize(ctx)

	snap := d.store.Snapshot()
	visible := filter.Apply(snap.ItemsState, itemFilter, locations)
	grouped := views.GroupBy(visible, views.ByLocation)

	longest := 0
	columns := make([][]models.OccupancyRecord, len(locations))
	for i, loc := range locations {
		col := grouped[loc]
		if len(col) > longest {
			longest = len(col)
		}
		columns[i] = views.Paginate(col, pageSize, page)
	}

	return &Grid{
		Locations: locations,
		Rows:      views.Pivot(columns),
		Pages:     views.PageCount(longest, pageSize),
	}, nil
}

// ResolveName 非阻塞名称解析：未解析时返回标识符本身（占位呈现）
// 身份查询是尽力而为的装饰，失败不会上抛
func (d *Dashboard) ResolveName(id string) string {
	res := d.cache.Fetch(id)
	if res.State == cache.Resolved {
		return res.Value.Name
	}
	return id
}

// History 聚焦物品履历的一页（最新在前）
func (d *Dashboard) History(page, pageSize int) ([]models.OccupancyRecord, int) {
	snap := d.store.Snapshot()
	return views.Paginate(snap.ItemHistory, pageSize, page), views.PageCount(len(snap.ItemHistory), pageSize)
}
