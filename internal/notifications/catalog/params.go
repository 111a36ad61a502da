// internal/notifications/catalog/params.go
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Params is a channel configuration after recipient and sender were removed. Values come
// from decoded JSON, so numbers may be float64 or json.Number and lists []interface{}.
type Params map[string]interface{}

func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (p Params) Strings(key string) []string {
	return ToStrings(p[key])
}

func (p Params) Object(key string) map[string]interface{} {
	if m, ok := p[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// require reports the first empty string parameter.
func (p Params) require(keys ...string) error {
	for _, k := range keys {
		if p.String(k) == "" {
			return fmt.Errorf("%s is required", k)
		}
	}
	return nil
}

// ToStrings normalizes a recipient value: a scalar becomes a one-element list.
func ToStrings(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), val...)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return []string{fmt.Sprint(val)}
	}
}
