package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// EndpointConfig 服务端点地址
type EndpointConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// URL 拼接基础 URL（host 为空时回退到 localhost）
func (e EndpointConfig) URL() string {
	host := e.Host
	if host == "" {
		host = "localhost"
	}
	if e.Port > 0 {
		return fmt.Sprintf("http://%s:%d", host, e.Port)
	}
	return fmt.Sprintf("http://%s", host)
}

// MQTTConfig 消息总线配置
type MQTTConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Prefix string `json:"prefix"`
}

// BrokerURL 组装 broker 地址（仪表板经由 WebSocket 接入）
func (m MQTTConfig) BrokerURL() string {
	host := m.Host
	if host == "" {
		host = "localhost"
	}
	port := m.Port
	if port == 0 {
		port = 9001
	}
	return fmt.Sprintf("ws://%s:%d", host, port)
}

// ItemsConfig 物品过滤默认值
type ItemsConfig struct {
	Defaults []string `json:"defaults"` // 默认显示的物品类型标签
}

// LocationsConfig 位置过滤默认值
type LocationsConfig struct {
	Defaults []string `json:"defaults"` // 默认显示的位置类型标签
	Tag      string   `json:"tag"`      // 位置标识符的类型标签
}

// Config 服务配置（会话内只读）
type Config struct {
	API       EndpointConfig  `json:"api"`
	DB        EndpointConfig  `json:"db"`
	MQTT      MQTTConfig      `json:"mqtt"`
	Items     ItemsConfig     `json:"items"`
	Locations LocationsConfig `json:"locations"`

	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`

	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
}

// Load 加载配置：配置文件 + 环境变量覆盖
// 配置文件路径取 CONFIG_PATH（默认 ./config/config.json），文件缺失时仅用环境变量
func Load() (*Config, error) {
	cfg := &Config{}

	path := getEnv("CONFIG_PATH", "./config/config.json")
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.API.Host = getEnv("API_HOST", cfg.API.Host)
	cfg.API.Port = getEnvInt("API_PORT", cfg.API.Port)
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvInt("DB_PORT", cfg.DB.Port)

	cfg.MQTT.Host = getEnv("MQTT_HOST", cfg.MQTT.Host)
	cfg.MQTT.Port = getEnvInt("MQTT_PORT", cfg.MQTT.Port)
	cfg.MQTT.Prefix = getEnv("MQTT_PREFIX", cfg.MQTT.Prefix)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", defaultString(cfg.Redis.Addr, "localhost:6379"))
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	if cfg.Locations.Tag == "" {
		cfg.Locations.Tag = getEnv("LOCATION_TAG", "location")
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", defaultString(cfg.Log.Level, "info"))
	cfg.Log.Format = getEnv("LOG_FORMAT", defaultString(cfg.Log.Format, "json"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
