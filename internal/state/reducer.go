package state

import (
	"fmt"
	"time"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// State 画布状态：当前占位集合 + 聚焦物品的履历
// ItemsState 中开放记录在 (item_id, location_link) 上唯一，最近变动的排最前
type State struct {
	ItemsState  []models.OccupancyRecord
	ItemHistory []models.OccupancyRecord
	CurrentItem string
	Connected   bool
}

// Action 归约器动作（闭集，未知动作视为编程错误）
type Action interface {
	isAction()
}

// SetItems 全量替换当前占位集合（快照加载后）
type SetItems struct {
	Items []models.OccupancyRecord
}

// ItemEntered 物品进入某位置
type ItemEntered struct {
	Entry models.OccupancyRecord
}

// ItemExited 物品离开某位置（按 item_id + location_link 双字段匹配）
type ItemExited struct {
	ItemID       string
	LocationLink string
	Timestamp    time.Time
}

// ItemUpdated 原子替换：同位置数量/时间戳变化
type ItemUpdated struct {
	Entry models.OccupancyRecord
}

// HistoryLoaded 聚焦物品履历加载完成，重置上一个物品的残留履历
type HistoryLoaded struct {
	ItemID  string
	Dataset []models.OccupancyRecord
}

// MQTTStatus 连接状态标志，不触碰占位数据
type MQTTStatus struct {
	Connected bool
}

func (SetItems) isAction()      {}
func (ItemEntered) isAction()   {}
func (ItemExited) isAction()    {}
func (ItemUpdated) isAction()   {}
func (HistoryLoaded) isAction() {}
func (MQTTStatus) isAction()    {}

// Reduce 纯归约函数：(当前状态, 动作) -> 新状态
// 不修改输入，无副作用；动作按派发顺序逐一应用（last write wins）
func Reduce(current State, action Action) State {
	switch a := action.(type) {
	case MQTTStatus:
		current.Connected = a.Connected
		return current

	case SetItems:
		current.ItemsState = append([]models.OccupancyRecord(nil), a.Items...)
		return current

	case ItemUpdated:
		current.ItemsState = prepend(
			removeMatching(current.ItemsState, a.Entry.ItemID, a.Entry.LocationLink),
			a.Entry,
		)
		return current

	case ItemEntered:
		current.ItemsState = prepend(current.ItemsState, a.Entry)
		if a.Entry.ItemID == current.CurrentItem {
			current.ItemHistory = prepend(current.ItemHistory, a.Entry)
		}
		return current

	case ItemExited:
		current.ItemsState = removeMatching(current.ItemsState, a.ItemID, a.LocationLink)
		if a.ItemID == current.CurrentItem {
			current.ItemHistory = closeOpenEntries(current.ItemHistory, a.ItemID, a.Timestamp)
		}
		return current

	case HistoryLoaded:
		current.ItemHistory = append([]models.OccupancyRecord(nil), a.Dataset...)
		current.CurrentItem = a.ItemID
		return current

	default:
		panic(fmt.Sprintf("unhandled action type: %T", action))
	}
}

func prepend(records []models.OccupancyRecord, entry models.OccupancyRecord) []models.OccupancyRecord {
	out := make([]models.OccupancyRecord, 0, len(records)+1)
	out = append(out, entry)
	return append(out, records...)
}

func removeMatching(records []models.OccupancyRecord, itemID, locationLink string) []models.OccupancyRecord {
	out := make([]models.OccupancyRecord, 0, len(records))
	for _, r := range records {
		if r.ItemID == itemID && r.LocationLink == locationLink {
			continue
		}
		out = append(out, r)
	}
	return out
}

// closeOpenEntries 给履历中该物品仍开放的条目盖上结束时间
// 没有匹配的开放条目时原样返回（事件先于履历加载到达等情况，不得伪造行）
func closeOpenEntries(history []models.OccupancyRecord, itemID string, end time.Time) []models.OccupancyRecord {
	out := make([]models.OccupancyRecord, len(history))
	for i, entry := range history {
		if entry.ItemID == itemID && entry.End == nil {
			stamped := end
			entry.End = &stamped
		}
		out[i] = entry
	}
	return out
}
