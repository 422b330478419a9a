package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CoerceMinutes turns a loosely typed duration (number, numeric string, "45 minutes")
// into a positive whole number of minutes.
func CoerceMinutes(v any) (int, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing duration")
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", x)
		}
		f = n
	case string:
		fields := strings.Fields(x)
		if len(fields) == 0 {
			return 0, fmt.Errorf("missing duration")
		}
		n, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", x)
		}
		f = n
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
	minutes := int(math.Round(f))
	if minutes <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %v", v)
	}
	return minutes, nil
}

// CoerceTags accepts a JSON array of strings or a comma separated string.
// Blank entries are dropped; the result is never nil.
func CoerceTags(v any) ([]string, error) {
	tags := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	switch x := v.(type) {
	case nil:
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("invalid tag %v", e)
			}
			add(s)
		}
	case string:
		for _, s := range strings.Split(x, ",") {
			add(s)
		}
	default:
		return nil, fmt.Errorf("invalid tags type %T", v)
	}
	return tags, nil
}

// CoerceDeadline accepts nil, a date/time string or a time.Time.
func CoerceDeadline(v any, loc *time.Location) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseDeadline(x, loc)
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return &x, nil
	case *time.Time:
		return x, nil
	default:
		return nil, fmt.Errorf("invalid deadline type %T", v)
	}
}
