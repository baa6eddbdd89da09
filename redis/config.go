package redis

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	ModeStandalone = "standalone"
	ModeCluster    = "cluster"
)

// Config is one entry of "redis.instances".
type Config struct {
	// Mode is "standalone" or "cluster".
	Mode string `mapstructure:"mode"`

	// Addrs: standalone uses the first address, cluster uses all of them.
	Addrs []string `mapstructure:"addrs"`

	// Addr is a single-address shorthand, folded into Addrs.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`

	// DB is only honored in standalone mode.
	DB int `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Validate checks the configuration after ApplyDefaults.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStandalone, ModeCluster)),
		validation.Field(&c.Addrs, validation.Required.Error("cannot be empty")),
		validation.Field(&c.DB, validation.When(c.Mode == ModeStandalone, validation.Min(0), validation.Max(15))),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
	)
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.Addr != "" && len(c.Addrs) == 0 {
		c.Addrs = []string{c.Addr}
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	// limiter calls are latency sensitive
	if c.ReadTimeout == 0 {
		c.ReadTimeout = time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Second
	}
}
