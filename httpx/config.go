// Package httpx holds the JSON envelope, error mapping and generic handler wrapper shared by
// the gateway's HTTP routes.
package httpx

// ErrorLoggingConfig controls whether HandleError logs the errors it renders.
type ErrorLoggingConfig struct {
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus lists statuses that are rendered but not logged, e.g. 400 and 404.
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// FullErrorChain adds the wrapped causes to the entry.
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel is error, warn or info.
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultErrorLoggingConfig returns logging off, full chain, error level.
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		Enable:           false,
		IgnoreHTTPStatus: []int{},
		FullErrorChain:   true,
		LogLevel:         "error",
	}
}
