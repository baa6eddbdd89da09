package limiter

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/KOMKZ/go-yogan-admission/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the "admission" configuration section.
//
//	admission:
//	  default_policy: api
//	  user_context_key: user_id
//	  store:
//	    instance: main
//	    key_prefix: "admission:"
//	    op_timeout: 200ms
//	  events:
//	    enabled: true
//	    pool_size: 16
//	  policies:
//	    api:
//	      strategy: token_bucket
//	      backend: redis
//	      default_limit: 100
//	      window_size: 10s
//
// Policy ids are lower-cased by the configuration loader.
type Config struct {
	DefaultPolicy  string            `mapstructure:"default_policy" json:"default_policy"`
	UserContextKey string            `mapstructure:"user_context_key" json:"user_context_key"`
	Store          StoreConfig       `mapstructure:"store" json:"store"`
	Events         EventsConfig      `mapstructure:"events" json:"events"`
	Metrics        bool              `mapstructure:"metrics" json:"metrics"`
	Policies       map[string]Policy `mapstructure:"policies" json:"policies"`
}

// StoreConfig selects the redis instance behind the shared store.
type StoreConfig struct {
	Instance  string        `mapstructure:"instance" json:"instance"`
	KeyPrefix string        `mapstructure:"key_prefix" json:"key_prefix"`
	OpTimeout time.Duration `mapstructure:"op_timeout" json:"op_timeout"`
}

// EventsConfig controls the decision event bus.
type EventsConfig struct {
	Enabled  bool `mapstructure:"enabled" json:"enabled"`
	PoolSize int  `mapstructure:"pool_size" json:"pool_size"`
}

const (
	DefaultStoreInstance  = "main"
	DefaultUserContextKey = "user_id"
	DefaultStoreOpTimeout = 200 * time.Millisecond
)

// ApplyDefaults fills unset fields, including the defaults of every policy.
func (c *Config) ApplyDefaults() {
	if c.UserContextKey == "" {
		c.UserContextKey = DefaultUserContextKey
	}
	if c.Store.Instance == "" {
		c.Store.Instance = DefaultStoreInstance
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = DefaultKeyPrefix
	}
	if c.Store.OpTimeout == 0 {
		c.Store.OpTimeout = DefaultStoreOpTimeout
	}
	if c.Events.PoolSize <= 0 {
		c.Events.PoolSize = defaultEventPoolSize
	}
	for id, p := range c.Policies {
		p.ApplyDefaults()
		c.Policies[id] = p
	}
}

// Validate checks the section and every policy. The error is an ErrInvalidPolicy.
func (c Config) Validate() error {
	return validator.ValidateAs(configRules(c), ErrInvalidPolicy)
}

// Policy returns the policy registered under id.
func (c Config) Policy(id string) (Policy, bool) {
	p, ok := c.Policies[id]
	return p, ok
}

// PolicyIDs returns the configured ids in sorted order.
func (c Config) PolicyIDs() []string {
	return slices.Sorted(maps.Keys(c.Policies))
}

// UsesRedis reports whether any policy needs the shared store.
func (c Config) UsesRedis() bool {
	for _, p := range c.Policies {
		if p.Backend == BackendRedis {
			return true
		}
	}
	return false
}

type configRules Config

func (r configRules) Validate() error {
	c := Config(r)

	return validation.ValidateStruct(&c,
		validation.Field(&c.Policies,
			validation.Required.Error("at least one policy is required"),
			validation.By(validatePolicies),
		),
		validation.Field(&c.DefaultPolicy,
			validation.When(c.DefaultPolicy != "", validation.By(func(interface{}) error {
				if _, ok := c.Policies[c.DefaultPolicy]; !ok {
					return errors.New("does not name a configured policy")
				}
				return nil
			})),
		),
		validation.Field(&c.Store, validation.By(func(interface{}) error {
			if c.Store.OpTimeout < 0 {
				return errors.New("op_timeout must not be negative")
			}
			return nil
		})),
	)
}

// validatePolicies nests each policy's field errors under its id.
func validatePolicies(value interface{}) error {
	policies, _ := value.(map[string]Policy)

	errs := validation.Errors{}
	for id, p := range policies {
		if err := policyRules(p).Validate(); err != nil {
			errs[id] = err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
