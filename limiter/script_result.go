package limiter

import (
	"fmt"
	"math"
	"strconv"
)

// scriptInt decodes a numeric script reply. Redis returns integers, but stores behind
// proxies or test doubles may hand back strings or floats.
func scriptInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(math.Floor(n)), nil
	case string:
		return parseNumeric(n)
	case []byte:
		return parseNumeric(string(n))
	default:
		return 0, ErrUnexpectedScriptResult.Wrap(fmt.Errorf("reply of type %T", v))
	}
}

func parseNumeric(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrUnexpectedScriptResult.Wrap(fmt.Errorf("reply %q: %w", s, err))
	}
	return int64(math.Floor(f)), nil
}
