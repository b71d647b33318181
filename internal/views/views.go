// Package views 提供无状态的表格视图变换：
// 分组、分页、按列位置转置。读取时计算，不落地存储。
package views

import (
	"sort"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// KeyFunc 分组键提取函数
type KeyFunc func(models.OccupancyRecord) string

// ByLocation 按位置分组键
func ByLocation(r models.OccupancyRecord) string { return r.LocationLink }

// ByItem 按物品分组键
func ByItem(r models.OccupancyRecord) string { return r.ItemID }

// GroupBy 按键分组，组内保持输入相对顺序
func GroupBy(records []models.OccupancyRecord, key KeyFunc) map[string][]models.OccupancyRecord {
	groups := make(map[string][]models.OccupancyRecord)
	for _, r := range records {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	return groups
}

// Paginate 返回第 page 页（1 起始）的切片
// 越界页码返回空切片，从不 panic
func Paginate(records []models.OccupancyRecord, pageSize, page int) []models.OccupancyRecord {
	if pageSize <= 0 || page <= 0 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return nil
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// PageCount 总页数（至少 1 页）
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	n := (total + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}

// Pivot 将 N 个列序列转置为行优先网格：第 i 行由各列第 i 个元素组成，
// 较短的列补 nil。行纯按下标对齐，不按时间或身份拼接——
// 各列独立分页后的已知取舍，只影响显示分组。
func Pivot(columns [][]models.OccupancyRecord) [][]*models.OccupancyRecord {
	height := 0
	for _, col := range columns {
		if len(col) > height {
			height = len(col)
		}
	}

	rows := make([][]*models.OccupancyRecord, height)
	for i := range rows {
		row := make([]*models.OccupancyRecord, len(columns))
		for j, col := range columns {
			if i < len(col) {
				entry := col[i]
				row[j] = &entry
			}
		}
		rows[i] = row
	}
	return rows
}

// SortByStartDesc 按开始时间降序（最新在前），稳定排序
func SortByStartDesc(records []models.OccupancyRecord) []models.OccupancyRecord {
	out := append([]models.OccupancyRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.After(out[j].Start)
	})
	return out
}

// SortByOrdering 按给定物品顺序排序（item_ordering 偏好），
// 未列出的物品保持相对顺序排在末尾
func SortByOrdering(records []models.OccupancyRecord, ordering []string) []models.OccupancyRecord {
	rank := make(map[string]int, len(ordering))
	for i, id := range ordering {
		rank[id] = i
	}
	pos := func(r models.OccupancyRecord) int {
		if p, ok := rank[r.ItemID]; ok {
			return p
		}
		return len(ordering)
	}

	out := append([]models.OccupancyRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return pos(out[i]) < pos(out[j])
	})
	return out
}
