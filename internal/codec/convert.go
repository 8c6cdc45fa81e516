package codec

import "math"

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return float64(toInt64(v))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}

func toBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return nil
	}
}

func float32ToBits(f float64) uint32 { return math.Float32bits(float32(f)) }
func float64ToBits(f float64) uint64 { return math.Float64bits(f) }
func bitsToFloat32(b uint32) float64 { return float64(math.Float32frombits(b)) }
func bitsToFloat64(b uint64) float64 { return math.Float64frombits(b) }
