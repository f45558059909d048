package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yaml"

// Cfg 全局配置，服务启动时由MustLoad填充
var Cfg *Config

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	OSS       OSSConfig       `yaml:"oss"`
	MQ        MQConfig        `yaml:"mq"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type OSSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	BucketName      string `yaml:"bucket_name"`
}

type MQConfig struct {
	NameServer []string `yaml:"name_server"`

	// 任务被放弃前的最大重投次数，超过后broker转入死信
	MaxReconsumeTimes int `yaml:"max_reconsume_times"`
}

type MilvusConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	CollectionName string `yaml:"collection_name"`
}

type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GatewayConfig 上游网关转发身份断言所用的签名密钥
type GatewayConfig struct {
	SecretKey string `yaml:"secret_key"`
}

type SweepConfig struct {
	Interval        time.Duration `yaml:"interval"`
	PendingMaxAge   time.Duration `yaml:"pending_max_age"`
	AlertProcessing time.Duration `yaml:"alert_processing"`
}

// MustLoad 读取配置文件并填充Cfg，路径可被环境变量CONFIG_PATH覆盖
func MustLoad() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read config file %s: %v", path, err))
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		panic(fmt.Sprintf("failed to parse config file %s: %v", path, err))
	}

	applyDefaults(cfg)
	Cfg = cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.MQ.MaxReconsumeTimes == 0 {
		cfg.MQ.MaxReconsumeTimes = 5
	}
	if cfg.Milvus.CollectionName == "" {
		cfg.Milvus.CollectionName = "document_chunk"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1024
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 10
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = 5 * time.Minute
	}
	if cfg.Sweep.PendingMaxAge == 0 {
		cfg.Sweep.PendingMaxAge = 10 * time.Minute
	}
	if cfg.Sweep.AlertProcessing == 0 {
		cfg.Sweep.AlertProcessing = 30 * time.Minute
	}
}
