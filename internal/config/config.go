package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 agent-proxy 进程的顶层配置，来源为 YAML 文件加环境变量覆盖。
type Config struct {
	HTTPAddr    string        `yaml:"httpAddr"`
	MetricsAddr string        `yaml:"metricsAddr"`
	Account     string        `yaml:"account"`
	RootKeyHex  string        `yaml:"rootKeyHex"`
	Store       StoreConfig   `yaml:"store"`
	Signer      SignerConfig  `yaml:"signer"`
	Delegation  ChainConfig   `yaml:"delegation"`
	Shutdown    time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig 选择持久化后端。
type StoreConfig struct {
	// Backend 取值 badger 或 memory。
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// SignerConfig 控制外部 signer 通道的防护参数。
type SignerConfig struct {
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	FailureThreshold int           `yaml:"failureThreshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ChainConfig 控制委托链的签发范围与基础密钥类型。
type ChainConfig struct {
	Enabled bool     `yaml:"enabled"`
	Targets []string `yaml:"targets"`
	// KeyKind 取值 ecdsa 或 ed25519。
	KeyKind string `yaml:"keyKind"`
}

// Default 返回安全默认值。
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9100",
		Store:       StoreConfig{Backend: "memory"},
		Signer: SignerConfig{
			RateLimit:        50,
			RateBurst:        10,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Delegation: ChainConfig{KeyKind: "ecdsa"},
		Shutdown:   5 * time.Second,
	}
}

// Load 读取 YAML 配置文件并套用环境变量覆盖。path 为空时只用默认值加环境变量。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENT_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("AGENT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("AGENT_ACCOUNT"); v != "" {
		c.Account = v
	}
	if v := os.Getenv("AGENT_ROOT_KEY_HEX"); v != "" {
		c.RootKeyHex = v
	}
	if v := os.Getenv("AGENT_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("AGENT_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := readFloat("AGENT_SIGNER_RATE_LIMIT"); v > 0 {
		c.Signer.RateLimit = v
	}
	if v := readInt("AGENT_SIGNER_RATE_BURST"); v > 0 {
		c.Signer.RateBurst = v
	}
	if v := readInt("AGENT_SIGNER_FAILURE_THRESHOLD"); v > 0 {
		c.Signer.FailureThreshold = v
	}
	if d := readDuration("AGENT_SIGNER_COOLDOWN"); d > 0 {
		c.Signer.Cooldown = d
	}
	if d := readDuration("AGENT_SHUTDOWN_TIMEOUT"); d > 0 {
		c.Shutdown = d
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for badger backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Delegation.KeyKind {
	case "", "ecdsa", "ed25519":
	default:
		return fmt.Errorf("unknown key kind %q", c.Delegation.KeyKind)
	}
	return nil
}

func readInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return v
}

func readFloat(key string) float64 {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return v
}

func readDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
