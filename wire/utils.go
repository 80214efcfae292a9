package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/anirudhraja/protosynth/schema"
)

// Helpers to coerce host inputs to integers (accept exponent/float forms if integral)
func coerceToInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case json.Number:
		// Try integer first
		if iv, err := t.Int64(); err == nil {
			return iv, nil
		}
		// Fallback: parse as float and check integral
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, err
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("non-integer numeric for integer field")
		}
		return int64(f), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integer numeric for integer field")
		}
		return int64(t), nil
	case string:
		// allow explicit integer strings
		if strings.ContainsAny(t, ".eE") {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return 0, err
			}
			if f != math.Trunc(f) {
				return 0, fmt.Errorf("non-integer numeric for integer field")
			}
			return int64(f), nil
		}
		iv, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, err
		}
		return iv, nil
	default:
		return 0, fmt.Errorf("expected integer-like, got %T", v)
	}
}

func coerceToUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case int, int64, int32:
		iv, _ := coerceToInt64(t)
		if iv < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", iv)
		}
		return uint64(iv), nil
	case json.Number:
		if uv, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return uv, nil
		}
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, err
		}
		if f < 0 || f != math.Trunc(f) {
			return 0, fmt.Errorf("non-integer numeric for unsigned field")
		}
		return uint64(f), nil
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integer numeric for unsigned field")
		}
		return uint64(t), nil
	case string:
		if strings.ContainsAny(t, ".eE") {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return 0, err
			}
			if f < 0 || f != math.Trunc(f) {
				return 0, fmt.Errorf("non-integer numeric for unsigned field")
			}
			return uint64(f), nil
		}
		uv, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, err
		}
		return uv, nil
	default:
		return 0, fmt.Errorf("expected unsigned-integer-like, got %T", v)
	}
}

func coerceToInt32(v interface{}) (int32, error) {
	if t, ok := v.(int32); ok {
		return t, nil
	}
	iv, err := coerceToInt64(v)
	if err != nil {
		return 0, err
	}
	if iv < math.MinInt32 || iv > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", iv)
	}
	return int32(iv), nil
}

func coerceToUint32(v interface{}) (uint32, error) {
	if t, ok := v.(uint32); ok {
		return t, nil
	}
	uv, err := coerceToUint64(v)
	if err != nil {
		return 0, err
	}
	if uv > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows uint32", uv)
	}
	return uint32(uv), nil
}

func coerceToFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return parseFloatText(t, 64)
	default:
		iv, err := coerceToInt64(v)
		if err != nil {
			return 0, fmt.Errorf("expected float-like, got %T", v)
		}
		return float64(iv), nil
	}
}

func coerceToFloat32(v interface{}) (float32, error) {
	if t, ok := v.(float32); ok {
		return t, nil
	}
	f, err := coerceToFloat64(v)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

func coerceToBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func coerceToString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func coerceToBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("expected []byte, got %T", v)
	}
}

// coerceToEnum accepts an enum number or a member name.
func coerceToEnum(v interface{}, enum *schema.Enum) (int32, error) {
	if name, ok := v.(string); ok && enum != nil {
		if ev, ok := enum.ValueByName(name); ok {
			return ev.Number, nil
		}
		if _, err := strconv.ParseInt(name, 10, 32); err != nil {
			return 0, fmt.Errorf("unknown value %q for enum %s", name, enum.Name)
		}
	}
	return coerceToInt32(v)
}

// parseFloatText parses proto text float forms, including inf and nan.
func parseFloatText(s string, bitSize int) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, bitSize)
}

// toSlice converts the accepted repeated field representations to []interface{}.
func toSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case []Instance:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []*Record:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []map[string]interface{}:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []string:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case [][]byte:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []int32:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []int64:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []uint32:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []uint64:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []bool:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []float32:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []float64:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	case []int:
		slice := make([]interface{}, len(v))
		for i, val := range v {
			slice[i] = val
		}
		return slice, nil
	default:
		return nil, fmt.Errorf("repeated field value must be a slice, got %T", value)
	}
}
