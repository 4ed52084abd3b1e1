package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Blob     BlobConfig     `envPrefix:"BLOB_"`
	Protocol ProtocolConfig `envPrefix:"PROTOCOL_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:"0.0.0.0:8080"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
	// CredsKey encrypts stored protocol credentials when set. Base64
	// encoded 32-byte key; empty stores them as-is.
	CredsKey string `env:"CREDS_KEY"`
}

// StoreConfig selects the persistence driver. The memory driver is for
// local development only; nothing survives a restart.
type StoreConfig struct {
	Driver string `env:"DRIVER" envDefault:"mongo"` // mongo | memory
}

type DatabaseConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"chat_gateway"`
}

type BlobConfig struct {
	Driver    string `env:"DRIVER" envDefault:"memory"` // s3 | memory
	Region    string `env:"REGION" envDefault:"ap-southeast-1"`
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080/blobs"`
}

// ProtocolConfig selects the wire driver. The loopback driver answers
// in-process and is the sandbox default.
type ProtocolConfig struct {
	Driver string `env:"DRIVER" envDefault:"loopback"`
	// WarmBoot revives every auto-reconnect session at startup.
	WarmBoot bool `env:"WARM_BOOT" envDefault:"true"`
}

type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"chat-gateway-events"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
