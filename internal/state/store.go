package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// Listener 状态变更监听器，每次动作应用后收到新状态
type Listener func(State)

// Store 持有画布状态，所有变更经 Dispatch 串行化
// 互斥锁即派发队列：动作按获得锁的顺序逐一应用，不重排、不合并
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners []Listener
	logger    *zap.Logger
}

// NewStore 创建状态仓库
func NewStore(initial State, logger *zap.Logger) *Store {
	return &Store{
		state:  initial,
		logger: logger,
	}
}

// Dispatch 应用动作并通知监听器
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	next := snapshotLocked(s.state)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Debug("Applied state action", zap.String("action", actionName(action)))

	for _, l := range listeners {
		l(next)
	}
}

// Subscribe 注册监听器（在派发方 goroutine 上同步回调）
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Snapshot 返回当前状态的副本
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotLocked(s.state)
}

// CurrentItem 当前聚焦物品的标识符（未聚焦时为空）
func (s *Store) CurrentItem() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentItem
}

// Connected 消息总线连接标志
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Connected
}

func snapshotLocked(st State) State {
	st.ItemsState = append([]models.OccupancyRecord(nil), st.ItemsState...)
	st.ItemHistory = append([]models.OccupancyRecord(nil), st.ItemHistory...)
	return st
}

func actionName(action Action) string {
	switch action.(type) {
	case SetItems:
		return "SET_ITEMS"
	case ItemEntered:
		return "ITEM_ENTERED"
	case ItemExited:
		return "ITEM_EXITED"
	case ItemUpdated:
		return "ITEM_UPDATE"
	case HistoryLoaded:
		return "ITEM_HISTORY"
	case MQTTStatus:
		return "MQTT_STATUS"
	default:
		return "UNKNOWN"
	}
}
