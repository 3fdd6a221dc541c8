// Package typeconv holds the scalar coercions shared by the store adapters
// and the plan loader.
package typeconv

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize converts driver-specific scan results into plain Go values:
// []byte becomes string, Mongo datetimes become time.Time. Everything else
// passes through untouched.
func Normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case primitive.DateTime:
		return val.Time()
	default:
		return v
	}
}

// ToTime parses v into a time.Time, trying the common wire formats.
func ToTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case primitive.DateTime:
		return val.Time(), nil
	case []byte:
		return ToTime(string(val))
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, f := range formats {
			if t, err := time.Parse(f, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", val)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

// ToInt converts v to an int.
func ToInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	case []byte:
		return strconv.Atoi(string(val))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
