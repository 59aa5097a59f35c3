package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tron-wallet-explorer/pkg/errors"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// ConnString 显式配置的dsn优先，否则按驱动拼接
func (d *DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
	case "sqlite":
		return "file::memory:?cache=shared"
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

type ExplorerConfig struct {
	Tron TronConfig `mapstructure:"tron"`
}

type TronConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	// Policy: append（每次查询追加一条快照）或 upsert（按network+address唯一）
	Policy string `mapstructure:"policy"`
}

type WalletConfig struct {
	// PersistMode: sync 在响应前落库；deferred 投递到任务队列
	PersistMode    string `mapstructure:"persist_mode"`
	DefaultNetwork string `mapstructure:"default_network"`
}

type QueueConfig struct {
	Driver        string        `mapstructure:"driver"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	NATS          NATSConfig    `mapstructure:"nats"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

type NATSConfig struct {
	URL               string        `mapstructure:"url"`
	Name              string        `mapstructure:"name"`
	StreamName        string        `mapstructure:"stream_name"`
	Subject           string        `mapstructure:"subject"`
	Durable           string        `mapstructure:"durable"`
	MaxDeliver        int           `mapstructure:"max_deliver"`
	AckWait           time.Duration `mapstructure:"ack_wait"`
	NakDelay          time.Duration `mapstructure:"nak_delay"`
	FetchBatch        int           `mapstructure:"fetch_batch"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Queue        string        `mapstructure:"queue"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BlockTimeout time.Duration `mapstructure:"block_timeout"`
}

type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type RefreshConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Cron      string `mapstructure:"cron"`
	BatchSize int    `mapstructure:"batch_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 读取配置文件、.env 与环境变量
// 配置文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, errors.New(errors.ErrConfigLoad, "failed to load .env", err)
	}

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) && !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.New(errors.ErrConfigLoad, "failed to read config file", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.New(errors.ErrConfigLoad, "failed to unmarshal config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.New(errors.ErrConfigLoad, "invalid config", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tronix")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("explorer.tron.enabled", true)
	v.SetDefault("explorer.tron.base_url", "https://api.trongrid.io")
	v.SetDefault("explorer.tron.api_key", "")
	v.SetDefault("explorer.tron.timeout", "10s")

	v.SetDefault("storage.policy", "upsert")

	v.SetDefault("wallet.persist_mode", "deferred")
	v.SetDefault("wallet.default_network", "tron")

	v.SetDefault("queue.driver", "nats")
	v.SetDefault("queue.submit_timeout", "5s")
	v.SetDefault("queue.nats.url", "nats://broker:4222")
	v.SetDefault("queue.nats.name", "explorer")
	v.SetDefault("queue.nats.stream_name", "EXPLORER_TASKS")
	v.SetDefault("queue.nats.subject", "explorer.tasks.save_wallet_info")
	v.SetDefault("queue.nats.durable", "explorer-worker")
	v.SetDefault("queue.nats.max_deliver", 5)
	v.SetDefault("queue.nats.ack_wait", "30s")
	v.SetDefault("queue.nats.nak_delay", "5s")
	v.SetDefault("queue.nats.fetch_batch", 10)
	v.SetDefault("queue.nats.connect_timeout", "10s")
	v.SetDefault("queue.nats.reconnect_attempts", 5)
	v.SetDefault("queue.nats.reconnect_delay", "2s")
	v.SetDefault("queue.redis.addr", "redis:6379")
	v.SetDefault("queue.redis.password", "")
	v.SetDefault("queue.redis.db", 0)
	v.SetDefault("queue.redis.queue", "explorer:save_wallet_info")
	v.SetDefault("queue.redis.max_attempts", 5)
	v.SetDefault("queue.redis.block_timeout", "5s")

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.concurrency", 4)

	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.cron", "0 */15 * * * *")
	v.SetDefault("refresh.batch_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 只检查取值范围，连接性问题留给启动阶段
func (c *Config) Validate() error {
	switch c.Storage.Policy {
	case "append", "upsert":
	default:
		return fmt.Errorf("invalid storage.policy %q: want append or upsert", c.Storage.Policy)
	}

	switch c.Wallet.PersistMode {
	case "sync", "deferred":
	default:
		return fmt.Errorf("invalid wallet.persist_mode %q: want sync or deferred", c.Wallet.PersistMode)
	}

	switch c.Queue.Driver {
	case "nats", "redis":
	default:
		return fmt.Errorf("invalid queue.driver %q: want nats or redis", c.Queue.Driver)
	}

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}

	if c.Explorer.Tron.Timeout <= 0 {
		return fmt.Errorf("explorer.tron.timeout must be positive")
	}

	return nil
}
