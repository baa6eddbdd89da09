package limiter

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-admission/validator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Strategy selects the counting algorithm.
type Strategy string

const (
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyTokenBucket Strategy = "token_bucket"
)

// Backend selects where per-key state lives.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendRedis Backend = "redis"
)

// KeyType tells the HTTP layer how to derive the key of a request.
type KeyType string

const (
	KeyTypeIP           KeyType = "ip"
	KeyTypeUser         KeyType = "user"
	KeyTypeAPI          KeyType = "api"
	KeyTypeCustomHeader KeyType = "custom_header"
)

// DefaultCustomHeaderName is the header read for KeyTypeCustomHeader when none is configured.
const DefaultCustomHeaderName = "X-RateLimit-Key"

// Policy is the immutable configuration of one limiter.
//
// Limits overrides DefaultLimit for individual keys. For token bucket policies the limit
// is the bucket capacity and limit/WindowSize is the refill rate in tokens per second.
type Policy struct {
	Strategy         Strategy       `mapstructure:"strategy" json:"strategy"`
	Backend          Backend        `mapstructure:"backend" json:"backend"`
	KeyType          KeyType        `mapstructure:"key_type" json:"key_type"`
	CustomHeaderName string         `mapstructure:"custom_header_name" json:"custom_header_name,omitempty"`
	Limits           map[string]int `mapstructure:"limits" json:"limits,omitempty"`
	DefaultLimit     int            `mapstructure:"default_limit" json:"default_limit"`
	WindowSize       time.Duration  `mapstructure:"window_size" json:"window_size"`
}

// ApplyDefaults fills the selector fields left empty by configuration and lower-cases
// the Limits keys.
func (p *Policy) ApplyDefaults() {
	if p.Strategy == "" {
		p.Strategy = StrategyFixedWindow
	}
	if p.Backend == "" {
		p.Backend = BackendLocal
	}
	if p.KeyType == "" {
		p.KeyType = KeyTypeIP
	}
	if len(p.Limits) > 0 {
		limits := make(map[string]int, len(p.Limits))
		for key, limit := range p.Limits {
			limits[strings.ToLower(key)] = limit
		}
		p.Limits = limits
	}
}

// Validate checks the invariants a limiter relies on. The error is an ErrInvalidPolicy
// carrying per-field messages.
func (p Policy) Validate() error {
	return validator.ValidateAs(policyRules(p), ErrInvalidPolicy)
}

// LimitFor returns the per-key limit, falling back to DefaultLimit. Keys match case
// insensitively because configuration loading lower-cases map keys.
func (p Policy) LimitFor(key string) int {
	if limit, ok := p.Limits[key]; ok {
		return limit
	}
	if limit, ok := p.Limits[strings.ToLower(key)]; ok {
		return limit
	}
	return p.DefaultLimit
}

// Remaining is what key may still send given count: the available tokens for a token
// bucket, else the limit minus count floored at 0.
func (p Policy) Remaining(key string, count int) int {
	if p.Strategy == StrategyTokenBucket {
		return count
	}
	return max(p.LimitFor(key)-count, 0)
}

// RefillRate returns the whole tokens per second a bucket of the given capacity regains.
func (p Policy) RefillRate(limit int) int {
	if p.WindowSize <= 0 {
		return 0
	}
	return int(float64(limit) / p.WindowSize.Seconds())
}

// WindowSeconds is the window rounded up to whole seconds, at least 1. Used as store TTL.
func (p Policy) WindowSeconds() int {
	secs := int(math.Ceil(p.WindowSize.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// HeaderName returns the header used for KeyTypeCustomHeader.
func (p Policy) HeaderName() string {
	if strings.TrimSpace(p.CustomHeaderName) == "" {
		return DefaultCustomHeaderName
	}
	return p.CustomHeaderName
}

type policyRules Policy

func (r policyRules) Validate() error {
	p := Policy(r)
	tokenBucket := p.Strategy == StrategyTokenBucket

	return validation.ValidateStruct(&p,
		validation.Field(&p.DefaultLimit,
			validation.Required.Error("must be positive"),
			validation.Min(1).Error("must be positive"),
			validation.When(tokenBucket, validation.By(p.refillRule)),
		),
		validation.Field(&p.WindowSize,
			validation.Required.Error("must be positive"),
			validation.Min(time.Duration(1)).Error("must be positive"),
		),
		validation.Field(&p.KeyType,
			validation.In(KeyTypeIP, KeyTypeUser, KeyTypeAPI, KeyTypeCustomHeader),
		),
		validation.Field(&p.CustomHeaderName,
			validation.When(p.KeyType == KeyTypeCustomHeader, validation.By(notBlank)),
		),
		validation.Field(&p.Limits,
			validation.Each(
				validation.Required.Error("must be positive"),
				validation.Min(1).Error("must be positive"),
				validation.When(tokenBucket, validation.By(p.refillRule)),
			),
		),
	)
}

func (p Policy) refillRule(value interface{}) error {
	limit, ok := value.(int)
	if !ok || limit <= 0 || p.WindowSize <= 0 {
		return nil
	}
	if p.RefillRate(limit) < 1 {
		return errors.New("refill rate below 1 token per second for this window size")
	}
	return nil
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("is required for the custom_header key type")
	}
	return nil
}
