package kafka

import (
	"time"

	"github.com/creasty/defaults"
)

// Config is the YAML shape of the kafka section. Topic carries score log
// entries; the board topic is optional.
type Config struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic" default:"edgescan.score_log"`
	Compression string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer    struct {
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"200ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"edgescan-score-log"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"10000"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// ProducerOptions maps the YAML config onto producer options. Score log
// entries are keyed by symbol, so the hash balancer is always on.
func (c Config) ProducerOptions() []ProducerOption {
	p := c.Producer
	return []ProducerOption{
		WithBrokers(c.Brokers),
		WithCompression(c.Compression),
		WithRequiredAcks(p.RequiredAcks),
		WithMaxAttempts(p.MaxAttempts),
		WithBatchSize(p.BatchSize),
		WithBatchBytes(p.BatchBytes),
		WithBatchTimeout(p.Linger),
		WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		WithAsync(p.Async),
		WithHashByKey(true),
	}
}

func (c Config) ConsumerOptions() []ConsumerOption {
	k := c.Consumer
	return []ConsumerOption{
		WithConsumerBrokers(c.Brokers),
		WithConsumerGroupID(k.GroupID),
		WithConsumerWorkers(k.Workers),
		WithConsumerBufferSize(k.BufferSize),
		WithConsumerRetry(k.RetryMax, k.BackoffMin, k.BackoffMax),
		WithConsumerDLQ(k.DLQTopic),
		WithConsumerFetch(k.MinBytes, k.MaxBytes),
	}
}

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	HashByKey    bool
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = compression }
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) { c.MaxAttempts = n }
}

func WithBatchSize(size int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchSize = size }
}

func WithBatchTimeout(timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchTimeout = timeout }
}

func WithBatchBytes(bytes int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchBytes = bytes }
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithHashByKey keeps all messages of one key on one partition.
func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}
