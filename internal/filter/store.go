package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 持久化键名（与浏览器端历史版本保持一致）
const (
	KeyItemFilter         = "item_filter"
	KeyShownLocations     = "shown_locations"
	KeyShowIcons          = "show_icons"
	KeyPageSize           = "page_size"
	KeyItemOrdering       = "item_ordering"
	KeyRelativeTimestamps = "use_relative_timestamps"
)

// Defaults 配置提供的默认值（解析顺序：持久值 → 配置默认 → 硬编码回退）
type Defaults struct {
	ItemTypeTags     []string // 默认显示的物品类型标签
	LocationTypeTags []string // 默认显示的位置类型标签
	PageSize         int
}

// SettingsStore 显式传递的偏好存储：启动时读、每次用户变更同步写
// 取代浏览器端的隐式全局 localStorage
type SettingsStore struct {
	kv       KVStore
	defaults Defaults
	logger   *zap.Logger
}

// NewSettingsStore 创建偏好存储
func NewSettingsStore(kv KVStore, defaults Defaults, logger *zap.Logger) *SettingsStore {
	if defaults.PageSize <= 0 {
		defaults.PageSize = 10
	}
	return &SettingsStore{kv: kv, defaults: defaults, logger: logger}
}

// LoadItemFilter 读取物品过滤器；键缺失或值损坏时静默回退到配置默认
func (s *SettingsStore) LoadItemFilter(ctx context.Context) ItemFilter {
	raw, err := s.kv.Get(ctx, KeyItemFilter)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read persisted item filter", zap.Error(err))
		}
		return DefaultItemFilter(s.defaults.ItemTypeTags)
	}

	var f ItemFilter
	if err := json.Unmarshal([]byte(raw), &f); err != nil || f == nil {
		s.logger.Warn("Corrupt persisted item filter, using defaults", zap.Error(err))
		return DefaultItemFilter(s.defaults.ItemTypeTags)
	}
	s.logger.Debug("Item filter loaded from storage", zap.Stringer("filter", f))
	return f
}

// SaveItemFilter 持久化物品过滤器；传 nil 表示重置为默认（删除持久值）
func (s *SettingsStore) SaveItemFilter(ctx context.Context, f ItemFilter) error {
	if f == nil {
		return s.kv.Delete(ctx, KeyItemFilter)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal item filter: %w", err)
	}
	return s.kv.Set(ctx, KeyItemFilter, string(raw))
}

// LoadShownLocations 读取显示位置序列；缺失/损坏时回退到 fallback
// （调用方传入按配置默认类型查得的位置 id 列表）
func (s *SettingsStore) LoadShownLocations(ctx context.Context, fallback []string) LocationFilter {
	raw, err := s.kv.Get(ctx, KeyShownLocations)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read persisted location filter", zap.Error(err))
		}
		return LocationFilter(fallback)
	}

	var locs []string
	if err := json.Unmarshal([]byte(raw), &locs); err != nil || locs == nil {
		s.logger.Warn("Corrupt persisted location filter, using defaults", zap.Error(err))
		return LocationFilter(fallback)
	}
	return LocationFilter(locs)
}

// SaveShownLocations 持久化显示位置序列（顺序即列序）；nil 表示重置
func (s *SettingsStore) SaveShownLocations(ctx context.Context, locs LocationFilter) error {
	if locs == nil {
		return s.kv.Delete(ctx, KeyShownLocations)
	}
	raw, err := json.Marshal([]string(locs))
	if err != nil {
		return fmt.Errorf("failed to marshal location filter: %w", err)
	}
	return s.kv.Set(ctx, KeyShownLocations, string(raw))
}

// PageSize 每页行数偏好
func (s *SettingsStore) PageSize(ctx context.Context) int {
	var v int
	if s.loadJSON(ctx, KeyPageSize, &v) && v > 0 {
		return v
	}
	return s.defaults.PageSize
}

// SavePageSize 持久化每页行数
func (s *SettingsStore) SavePageSize(ctx context.Context, size int) error {
	return s.saveJSON(ctx, KeyPageSize, size)
}

// ShowIcons 是否在表格中显示类型图标（默认显示）
func (s *SettingsStore) ShowIcons(ctx context.Context) bool {
	var v bool
	if s.loadJSON(ctx, KeyShowIcons, &v) {
		return v
	}
	return true
}

// SaveShowIcons 持久化图标开关
func (s *SettingsStore) SaveShowIcons(ctx context.Context, show bool) error {
	return s.saveJSON(ctx, KeyShowIcons, show)
}

// UseRelativeTimestamps 时间显示偏好："3 minutes ago" 与绝对时间戳之间切换（默认相对）
func (s *SettingsStore) UseRelativeTimestamps(ctx context.Context) bool {
	var v bool
	if s.loadJSON(ctx, KeyRelativeTimestamps, &v) {
		return v
	}
	return true
}

// SaveUseRelativeTimestamps 持久化时间显示偏好
func (s *SettingsStore) SaveUseRelativeTimestamps(ctx context.Context, relative bool) error {
	return s.saveJSON(ctx, KeyRelativeTimestamps, relative)
}

// ItemOrdering 物品显示顺序偏好（缺失时为空，视图按默认排序）
func (s *SettingsStore) ItemOrdering(ctx context.Context) []string {
	var v []string
	if s.loadJSON(ctx, KeyItemOrdering, &v) {
		return v
	}
	return nil
}

// SaveItemOrdering 持久化物品显示顺序
func (s *SettingsStore) SaveItemOrdering(ctx context.Context, ordering []string) error {
	if ordering == nil {
		return s.kv.Delete(ctx, KeyItemOrdering)
	}
	return s.saveJSON(ctx, KeyItemOrdering, ordering)
}

func (s *SettingsStore) loadJSON(ctx context.Context, key string, out any) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read persisted setting", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("Corrupt persisted setting, using default", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *SettingsStore) saveJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw))
}
