package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// Fetcher 底层查询协作者，每个 key 在缓存生命周期内至多调用一次
// （失败不计入：失败结果不缓存，下次引用时重试）
type Fetcher func(ctx context.Context, key string) (*models.IdentityRecord, error)

// ResultState 查询结果的三态：加载中 / 已解析 / 失败
// UI 对三种状态的呈现不同，布尔值不够用
type ResultState int

const (
	Pending ResultState = iota
	Resolved
	Failed
)

// Result Fetch 的返回值
type Result struct {
	State ResultState
	Value *models.IdentityRecord // State == Resolved 时非空，且同一 key 各次返回同一指针
	Err   error                  // State == Failed 时非空
}

type call struct {
	done chan struct{}
	val  *models.IdentityRecord
	err  error
}

// IdentityCache 身份记录查询缓存
// 并发查询同一 key 合并为一次底层请求；Clear 以代数（generation）作废在途结果，
// 清空后才完成的请求不会把旧值塞回缓存
type IdentityCache struct {
	mu         sync.Mutex
	generation uint64
	resolved   map[string]*models.IdentityRecord
	inflight   map[string]*call
	lastErr    map[string]error
	fetcher    Fetcher
	logger     *zap.Logger
}

// NewIdentityCache 创建查询缓存
func NewIdentityCache(fetcher Fetcher, logger *zap.Logger) *IdentityCache {
	return &IdentityCache{
		resolved: make(map[string]*models.IdentityRecord),
		inflight: make(map[string]*call),
		lastErr:  make(map[string]error),
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Fetch 非阻塞查询
//   - 已解析：返回 Resolved（缓存值，不再请求）
//   - 在途：返回 Pending（不发起重复请求）
//   - 未见过：后台发起一次请求，返回 Pending
//   - 上次失败：返回 Failed 并在后台重试（错误只报告一次）
func (c *IdentityCache) Fetch(key string) Result {
	c.mu.Lock()

	if v, ok := c.resolved[key]; ok {
		c.mu.Unlock()
		return Result{State: Resolved, Value: v}
	}

	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return Result{State: Pending}
	}

	failedErr, failed := c.lastErr[key]
	delete(c.lastErr, key)
	c.startFetchLocked(key)
	c.mu.Unlock()

	if failed {
		return Result{State: Failed, Err: failedErr}
	}
	return Result{State: Pending}
}

// Lookup 阻塞查询：等待底层请求完成（与并发的 Fetch 共享同一次请求）
func (c *IdentityCache) Lookup(ctx context.Context, key string) (*models.IdentityRecord, error) {
	c.mu.Lock()
	if v, ok := c.resolved[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	cl, ok := c.inflight[key]
	if !ok {
		delete(c.lastErr, key)
		cl = c.startFetchLocked(key)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startFetchLocked 发起一次底层请求；调用方需持有锁
func (c *IdentityCache) startFetchLocked(key string) *call {
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	gen := c.generation

	go func() {
		v, err := c.fetcher(context.Background(), key)
		cl.val, cl.err = v, err
		close(cl.done)

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.generation != gen {
			// 请求期间缓存被清空：丢弃结果，不复活旧条目
			c.logger.Debug("Discarding stale cache fill", zap.String("key", key))
			return
		}

		delete(c.inflight, key)
		if err != nil {
			// 失败不缓存，下次引用重试
			c.lastErr[key] = err
			c.logger.Warn("Identity lookup failed", zap.String("key", key), zap.Error(err))
			return
		}
		c.resolved[key] = v
	}()

	return cl
}

// Clear 丢弃全部已解析与在途条目
// 对在途请求安全：以代数作废，迟到的完成结果会被丢弃
func (c *IdentityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.resolved = make(map[string]*models.IdentityRecord)
	c.inflight = make(map[string]*call)
	c.lastErr = make(map[string]error)
}

// Size 已解析条目数（不含在途），仅用于展示
func (c *IdentityCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resolved)
}
