package models

import (
	"strings"
	"time"
)

// OccupancyRecord 占位记录："物品 X 自 T 起位于位置 Y，可带数量 Q"
// 开放记录（End 为 nil）在 (ItemID, LocationLink) 上唯一
type OccupancyRecord struct {
	RecordID     int64      `json:"record_id,omitempty"`
	ItemID       string     `json:"item_id"`
	LocationLink string     `json:"location_link"`
	Start        time.Time  `json:"start"`
	End          *time.Time `json:"end,omitempty"`
	Quantity     *int       `json:"quantity,omitempty"`
}

// TypeTag 提取物品类型标签（item_id 中 "@" 之前的前缀）
func (r OccupancyRecord) TypeTag() string {
	return TypeTagOf(r.ItemID)
}

// Open 记录是否仍然开放（尚未结束）
func (r OccupancyRecord) Open() bool {
	return r.End == nil
}

// TypeTagOf 提取标识符的类型标签前缀
func TypeTagOf(id string) string {
	tag, _, _ := strings.Cut(id, "@")
	return tag
}

// IdentityRecord 身份记录（名称目录条目），获取后在会话内不变
type IdentityRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Individual bool   `json:"individual"`
}

// StateEvent 推送事件载荷（entered/exited/update 主题）
// entered/update 事件若未携带 start 则以 timestamp 作为占位开始时间
type StateEvent struct {
	ItemID       string     `json:"item_id"`
	LocationLink string     `json:"location_link"`
	Start        *time.Time `json:"start,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	Quantity     *int       `json:"quantity,omitempty"`
}

// Record 由推送事件构造占位记录
func (e StateEvent) Record() OccupancyRecord {
	start := e.Timestamp
	if e.Start != nil {
		start = *e.Start
	}
	return OccupancyRecord{
		ItemID:       e.ItemID,
		LocationLink: e.LocationLink,
		Start:        start,
		Quantity:     e.Quantity,
	}
}

// TransferEvent 转移事件记录（events 端点返回）
type TransferEvent struct {
	EventID          int64     `json:"event_id"`
	ItemID           string    `json:"item_id"`
	FromLocationLink string    `json:"from_location_link,omitempty"`
	ToLocationLink   string    `json:"to_location_link"`
	Quantity         *int      `json:"quantity,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// ProductionInput 生产事件的单个投入
type ProductionInput struct {
	ItemID       string `json:"item_id"`
	LocationLink string `json:"location_link,omitempty"`
	Quantity     *int   `json:"quantity,omitempty"`
}

// ProductionEvent 生产事件记录
type ProductionEvent struct {
	EventID      int64             `json:"event_id"`
	ItemID       string            `json:"item_id"`
	LocationLink string            `json:"location_link"`
	Quantity     *int              `json:"quantity,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Inputs       []ProductionInput `json:"inputs,omitempty"`
}

// Note 物品备注
type Note struct {
	NoteID    int64     `json:"note_id"`
	ItemID    string    `json:"item_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusRecord 标签当前状态
type StatusRecord struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// IntPtr 返回 v 的指针（构造可选数量字段用）
func IntPtr(v int) *int {
	return &v
}
