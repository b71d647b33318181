package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqttclient "github.com/DigitalShoestringSolutions/LocationTracking/internal/mqtt"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/state"
)

// Subscriber MQTT 订阅端抽象（单元测试中替换真实客户端）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttclient.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Dispatcher 动作派发端（由状态仓库实现）
type Dispatcher interface {
	Dispatch(action state.Action)
}

// EventConsumer 把 location_state 推送事件翻译成归约器动作
// 推送可能乱序、可能重复（at-least-once），幂等性由归约器保证
type EventConsumer struct {
	subscriber Subscriber
	dispatcher Dispatcher
	prefix     string
	logger     *zap.Logger
}

// NewEventConsumer 创建事件消费者；prefix 为主题前缀（可为空）
func NewEventConsumer(subscriber Subscriber, dispatcher Dispatcher, prefix string, logger *zap.Logger) *EventConsumer {
	return &EventConsumer{
		subscriber: subscriber,
		dispatcher: dispatcher,
		prefix:     prefix,
		logger:     logger,
	}
}

// Topic 订阅的主题模式
func (c *EventConsumer) Topic() string {
	return c.prefix + "location_state/#"
}

// Start 订阅主题并阻塞到上下文取消
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.Topic(), 1, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to state topic: %w", err)
	}

	c.logger.Info("Event consumer started", zap.String("topic", c.Topic()))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *EventConsumer) Stop() error {
	if err := c.subscriber.Unsubscribe(c.Topic()); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("Event consumer stopped")
	return nil
}

// HandleMessage 处理单条推送消息
// 主题格式: <prefix>location_state/{entered|exited|update}
func (c *EventConsumer) HandleMessage(topic string, payload []byte) error {
	suffix := strings.TrimPrefix(topic, c.prefix)

	var event models.StateEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal state event on %s: %w", topic, err)
	}

	switch {
	case strings.HasSuffix(suffix, "location_state/update"):
		c.dispatcher.Dispatch(state.ItemUpdated{Entry: event.Record()})
	case strings.HasSuffix(suffix, "location_state/entered"):
		c.dispatcher.Dispatch(state.ItemEntered{Entry: event.Record()})
	case strings.HasSuffix(suffix, "location_state/exited"):
		c.dispatcher.Dispatch(state.ItemExited{
			ItemID:       event.ItemID,
			LocationLink: event.LocationLink,
			Timestamp:    event.Timestamp,
		})
	default:
		// 未知子主题不是错误：同一层级可能还有其它服务的消息
		c.logger.Debug("Ignoring message on unrecognised topic", zap.String("topic", topic))
	}

	return nil
}
