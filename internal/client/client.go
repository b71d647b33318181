// Package client 封装身份目录与状态存储两个 REST 协作者的查询。
// 所有响应都是 {status, payload} 信封，payload 才是数据本体。
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/config"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// apiResponse REST 协作者统一信封
type apiResponse struct {
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// Client 查询客户端：身份服务 + 状态服务
type Client struct {
	id     *resty.Client
	db     *resty.Client
	logger *zap.Logger
}

// NewClient 创建查询客户端（有界重试，不无限重试）
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	build := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(5 * time.Second).
			SetHeader("Accept", "application/json")
	}

	return &Client{
		id:     build(cfg.API.URL()),
		db:     build(cfg.DB.URL()),
		logger: logger,
	}
}

// get 执行 GET 并把信封 payload 解码到 out
func (c *Client) get(ctx context.Context, rc *resty.Client, path string, query url.Values, out any) error {
	req := rc.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode())
	}
	return decodeEnvelope(resp.Body(), path, out)
}

func decodeEnvelope(body []byte, path string, out any) error {
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("malformed response from %s: %w", path, err)
	}
	if out == nil || len(envelope.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return fmt.Errorf("malformed payload from %s: %w", path, err)
	}
	return nil
}

// GetItem 按 id 查身份记录
func (c *Client) GetItem(ctx context.Context, id string) (*models.IdentityRecord, error) {
	var record models.IdentityRecord
	if err := c.get(ctx, c.id, "/id/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListIDTypes 列出已知类型标签
func (c *Client) ListIDTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := c.get(ctx, c.id, "/id/types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// ListIDsForTypes 按类型标签列出身份记录
func (c *Client) ListIDsForTypes(ctx context.Context, types []string) ([]models.IdentityRecord, error) {
	query := url.Values{}
	for _, t := range types {
		query.Add("type", t)
	}
	var records []models.IdentityRecord
	if err := c.get(ctx, c.id, "/id/list", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListIDsForTag 按单个类型标签列出身份记录（位置目录用）
func (c *Client) ListIDsForTag(ctx context.Context, tag string) ([]models.IdentityRecord, error) {
	var records []models.IdentityRecord
	if err := c.get(ctx, c.id, "/id/list/"+url.PathEscape(tag), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetByBarcode 条码解析为完整身份记录
func (c *Client) GetByBarcode(ctx context.Context, typeTag, barcode string) (*models.IdentityRecord, error) {
	path := "/id/get/" + url.PathEscape(typeTag) + "/" + url.PathEscape(barcode)
	var record models.IdentityRecord
	if err := c.get(ctx, c.id, path+"?full", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CurrentState 当前状态快照（query 非空时做名称检索）
func (c *Client) CurrentState(ctx context.Context, searchQuery string) ([]models.OccupancyRecord, error) {
	var query url.Values
	if searchQuery != "" {
		query = url.Values{"q": []string{searchQuery}}
	}
	var records []models.OccupancyRecord
	if err := c.get(ctx, c.db, "/state/", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// StateAt 某位置的当前状态
func (c *Client) StateAt(ctx context.Context, locationLink string) ([]models.OccupancyRecord, error) {
	var records []models.OccupancyRecord
	if err := c.get(ctx, c.db, "/state/at/"+url.PathEscape(locationLink), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// StateFor 某物品当前的占位记录
func (c *Client) StateFor(ctx context.Context, itemID string) ([]models.OccupancyRecord, error) {
	var records []models.OccupancyRecord
	if err := c.get(ctx, c.db, "/state/for/"+url.PathEscape(itemID), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// HistoryFor 某物品的履历（可选时间范围），最新在前
func (c *Client) HistoryFor(ctx context.Context, itemID string, from, to *time.Time) ([]models.OccupancyRecord, error) {
	query := timeRangeQuery(from, to)
	var records []models.OccupancyRecord
	if err := c.get(ctx, c.db, "/state/history/for/"+url.PathEscape(itemID), query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// EventsAt 某位置的转移事件（可选时间范围）
func (c *Client) EventsAt(ctx context.Context, locationLink string, from, to *time.Time) ([]models.TransferEvent, error) {
	query := timeRangeQuery(from, to)
	var events []models.TransferEvent
	if err := c.get(ctx, c.db, "/events/at/"+url.PathEscape(locationLink), query, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// StatusOptions 可用状态选项列表
func (c *Client) StatusOptions(ctx context.Context) ([]string, error) {
	var options []string
	if err := c.get(ctx, c.db, "/status/", nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// StatusFor 某标签的当前状态
func (c *Client) StatusFor(ctx context.Context, id string) (*models.StatusRecord, error) {
	var record models.StatusRecord
	if err := c.get(ctx, c.db, "/status/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PostStatus 更新状态；失败时不改动任何本地状态，由调用方呈现错误
func (c *Client) PostStatus(ctx context.Context, id, status string) error {
	resp, err := c.db.R().
		SetContext(ctx).
		SetBody(map[string]string{"status": status}).
		Post("/status/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("failed to post status for %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("status update for %s rejected with status %d", id, resp.StatusCode())
	}
	return nil
}

// NotesFor 某标签的备注列表
func (c *Client) NotesFor(ctx context.Context, id string) ([]models.Note, error) {
	var notes []models.Note
	if err := c.get(ctx, c.db, "/status/notes/"+url.PathEscape(id), nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// AddNote 追加备注，返回服务端生成的记录
func (c *Client) AddNote(ctx context.Context, id, text string) (*models.Note, error) {
	resp, err := c.db.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post("/status/notes/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to add note for %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("note for %s rejected with status %d", id, resp.StatusCode())
	}
	var note models.Note
	if err := decodeEnvelope(resp.Body(), "/status/notes/"+id, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote 删除备注
func (c *Client) DeleteNote(ctx context.Context, noteID int64) error {
	resp, err := c.db.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/status/note/%d", noteID))
	if err != nil {
		return fmt.Errorf("failed to delete note %d: %w", noteID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete of note %d rejected with status %d", noteID, resp.StatusCode())
	}
	return nil
}

// Report 下载 CSV 报表原始字节（历史记录导出）
func (c *Client) Report(ctx context.Context, from, to *time.Time) ([]byte, error) {
	req := c.db.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv")
	if query := timeRangeQuery(from, to); query != nil {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get("/state/history/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("report fetch returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func timeRangeQuery(from, to *time.Time) url.Values {
	if from == nil && to == nil {
		return nil
	}
	query := url.Values{}
	if from != nil {
		query.Set("from", from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		query.Set("to", to.UTC().Format(time.RFC3339))
	}
	return query
}
