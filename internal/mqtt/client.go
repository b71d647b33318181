package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// StatusHandler 连接状态变化回调（connected: 当前是否在线）
type StatusHandler func(connected bool)

// Options MQTT客户端选项
type Options struct {
	BrokerURL string // 例如 ws://broker:9001（仪表板经 WebSocket 接入）
	ClientID  string // 为空时自动生成
	Username  string
	Password  string
}

// Client MQTT客户端封装
type Client struct {
	client   mqtt.Client
	logger   *zap.Logger
	onStatus StatusHandler
}

// NewClient 创建MQTT客户端并建立连接
// onStatus 在连接建立/丢失时各触发一次（自动重连后会再次触发）
func NewClient(opts Options, onStatus StatusHandler, logger *zap.Logger) (*Client, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "location-dashboard-" + uuid.NewString()[:8]
	}

	c := &Client{logger: logger, onStatus: onStatus}

	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker(opts.BrokerURL)
	mqttOpts.SetClientID(clientID)

	if opts.Username != "" {
		mqttOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mqttOpts.SetPassword(opts.Password)
	}

	mqttOpts.SetAutoReconnect(true)
	mqttOpts.SetCleanSession(true)
	mqttOpts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", opts.BrokerURL))
		if c.onStatus != nil {
			c.onStatus(true)
		}
	})
	mqttOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
		if c.onStatus != nil {
			c.onStatus(false)
		}
	})

	c.client = mqtt.NewClient(mqttOpts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

// Subscribe 订阅主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if token := c.client.Subscribe(topic, qos, func(client mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Publish 发布消息
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// PublishJSON 序列化并发布 JSON 消息
func (c *Client) PublishJSON(topic string, qos byte, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}
	return c.Publish(topic, qos, false, raw)
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
