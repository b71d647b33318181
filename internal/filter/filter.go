// Package filter 维护物品/位置可见性过滤状态及其持久化。
// 过滤谓词是"此占位行是否可见"的唯一判定点，列表/表格/图表视图都经由它。
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// Entry 单个类型标签的过滤条目
// JSON 编码为 true（全部显示）或物品 id 数组（部分选择）；
// 其它值（false/null/错误类型）一律排除该类型
type Entry struct {
	All bool
	IDs []string
}

// MarshalJSON 编码为 true 或 id 数组
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.All {
		return json.Marshal(true)
	}
	if e.IDs != nil {
		return json.Marshal(e.IDs)
	}
	return json.Marshal(false)
}

// UnmarshalJSON 容忍任意 JSON 值：非 true 且非数组的条目视为排除
func (e *Entry) UnmarshalJSON(raw []byte) error {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		*e = Entry{All: b}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		if ids == nil {
			ids = []string{}
		}
		*e = Entry{IDs: ids}
		return nil
	}
	*e = Entry{}
	return nil
}

// ItemFilter 类型标签 → 过滤条目
type ItemFilter map[string]Entry

// LocationFilter 要显示的位置 id 有序序列（顺序决定分组视图的列序）
type LocationFilter []string

// Contains 位置是否在显示序列中
func (l LocationFilter) Contains(locationLink string) bool {
	for _, id := range l {
		if id == locationLink {
			return true
		}
	}
	return false
}

// Visible 过滤谓词：记录可见当且仅当
// (a) 其位置在 locationFilter 中，且
// (b) 其类型标签的条目为 true，或为包含该记录确切 item_id 的列表
func Visible(record models.OccupancyRecord, itemFilter ItemFilter, locationFilter LocationFilter) bool {
	entry, ok := itemFilter[record.TypeTag()]
	if !ok {
		return false
	}
	if entry.All {
		return locationFilter.Contains(record.LocationLink)
	}
	if entry.IDs != nil {
		if !locationFilter.Contains(record.LocationLink) {
			return false
		}
		for _, id := range entry.IDs {
			if id == record.ItemID {
				return true
			}
		}
	}
	return false
}

// Apply 返回通过谓词的记录子序列，保持输入顺序
func Apply(records []models.OccupancyRecord, itemFilter ItemFilter, locationFilter LocationFilter) []models.OccupancyRecord {
	out := make([]models.OccupancyRecord, 0, len(records))
	for _, r := range records {
		if Visible(r, itemFilter, locationFilter) {
			out = append(out, r)
		}
	}
	return out
}

// DefaultItemFilter 由配置默认类型标签构造"全部显示"过滤器
func DefaultItemFilter(defaultTags []string) ItemFilter {
	f := make(ItemFilter, len(defaultTags))
	for _, tag := range defaultTags {
		f[tag] = Entry{All: true}
	}
	return f
}

func (f ItemFilter) String() string {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%#v", map[string]Entry(f))
	}
	return string(raw)
}
