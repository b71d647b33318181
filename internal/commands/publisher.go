// Package commands 经消息总线提交转移/生产操作。
// 提交失败时不做任何本地预提交，错误原样上抛由调用方呈现。
package commands

import (
	"fmt"

	"go.uber.org/zap"
)

// Publisher 消息发布端抽象（由 MQTT 客户端实现）
type Publisher interface {
	PublishJSON(topic string, qos byte, payload any) error
}

// TransferRequest 转移操作：把物品移动到 To
// 个体物品不带数量与来源位置；集体物品两者必填
type TransferRequest struct {
	ItemID     string
	To         string
	From       string // 集体物品必填
	Quantity   *int   // 集体物品必填
	Individual bool
}

// transferPayload 线上格式（与既有面板保持一致）
type transferPayload struct {
	Item     string `json:"item"`
	ToLoc    string `json:"to_loc"`
	FromLoc  string `json:"from_loc,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
}

// ProductionInput 生产操作的单个投入
type ProductionInput struct {
	ItemID   string `json:"item"`
	Location string `json:"loc,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
}

// ProductionRequest 生产操作：在 Location 产出物品，消耗 Inputs
type ProductionRequest struct {
	ItemID     string
	Location   string
	Quantity   *int // 集体物品必填
	Individual bool
	Inputs     []ProductionInput
}

type productionPayload struct {
	Item     string            `json:"item"`
	Loc      string            `json:"loc"`
	Quantity *int              `json:"quantity,omitempty"`
	Inputs   []ProductionInput `json:"inputs"`
}

// CommandPublisher 操作提交器
type CommandPublisher struct {
	publisher Publisher
	prefix    string
	logger    *zap.Logger
}

// NewCommandPublisher 创建操作提交器；prefix 为主题前缀（可为空）
func NewCommandPublisher(publisher Publisher, prefix string, logger *zap.Logger) *CommandPublisher {
	return &CommandPublisher{publisher: publisher, prefix: prefix, logger: logger}
}

// SubmitTransfer 发布转移操作
// 主题: <prefix>transfer_operation/<to>[/<from>]（来源位置仅集体物品携带）
func (p *CommandPublisher) SubmitTransfer(req TransferRequest) error {
	if req.ItemID == "" || req.To == "" {
		return fmt.Errorf("transfer requires item and destination")
	}

	payload := transferPayload{Item: req.ItemID, ToLoc: req.To}
	topic := p.prefix + "transfer_operation/" + req.To

	if !req.Individual {
		if req.From == "" || req.Quantity == nil {
			return fmt.Errorf("collective transfer requires source location and quantity")
		}
		payload.FromLoc = req.From
		payload.Quantity = req.Quantity
		topic += "/" + req.From
	}

	if err := p.publisher.PublishJSON(topic, 1, payload); err != nil {
		return fmt.Errorf("failed to submit transfer: %w", err)
	}

	p.logger.Info("Transfer submitted",
		zap.String("item_id", req.ItemID),
		zap.String("to", req.To),
	)
	return nil
}

// SubmitProduction 发布生产操作
// 主题: <prefix>production_operation/<loc>
func (p *CommandPublisher) SubmitProduction(req ProductionRequest) error {
	if req.ItemID == "" || req.Location == "" {
		return fmt.Errorf("production requires item and output location")
	}
	if !req.Individual && req.Quantity == nil {
		return fmt.Errorf("collective production requires quantity")
	}

	payload := productionPayload{
		Item:   req.ItemID,
		Loc:    req.Location,
		Inputs: req.Inputs,
	}
	if !req.Individual {
		payload.Quantity = req.Quantity
	}
	if payload.Inputs == nil {
		payload.Inputs = []ProductionInput{}
	}

	topic := p.prefix + "production_operation/" + req.Location
	if err := p.publisher.PublishJSON(topic, 1, payload); err != nil {
		return fmt.Errorf("failed to submit production: %w", err)
	}

	p.logger.Info("Production submitted",
		zap.String("item_id", req.ItemID),
		zap.String("location", req.Location),
		zap.Int("inputs", len(req.Inputs)),
	)
	return nil
}
