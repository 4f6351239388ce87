package projection

import (
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrUndecodableCell is returned when an integer-like cell does not hold an
// integer. The row it belongs to cannot be projected.
var ErrUndecodableCell = errors.New("undecodable cell")

// errDegraded tells the caller to fall back to the unknown-type value.
var errDegraded = errors.New("degraded")

type decoder func(v any) (any, error)

var decoders = map[Category]decoder{
	CategoryInteger: decodeInteger,
	CategoryFloat:   decodeFloat,
	CategoryText:    decodeText,
}

// decodeInteger yields int64, or uint64 for unsigned values above MaxInt64.
func decodeInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), nil
		}
		return x, nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint:
		return decodeInteger(uint64(x))
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
	case []byte:
		return parseInteger(string(x))
	case string:
		return parseInteger(x)
	case driver.Valuer:
		inner, err := x.Value()
		if err == nil && inner != nil {
			return decodeInteger(inner)
		}
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrUndecodableCell, v)
}

func parseInteger(s string) (any, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q is not an integer", ErrUndecodableCell, s)
}

// decodeFloat yields a JSON number that keeps the backend's decimal text.
func decodeFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return finite(x, 64)
	case float32:
		return finite(float64(x), 32)
	case int64, int32, int16, int8, int, uint64, uint32, uint16, uint8, uint:
		return decodeInteger(x)
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	case driver.Valuer:
		inner, err := x.Value()
		if err == nil && inner != nil {
			return decodeFloat(inner)
		}
	}
	return nil, errDegraded
}

func finite(f float64, bits int) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errDegraded
	}
	return gojson.Number(strconv.FormatFloat(f, 'g', -1, bits)), nil
}

func parseFloat(s string) (any, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errDegraded
	}
	// ParseFloat accepts forms JSON does not ("0x1p-2", "+1", "1_000").
	if !isJSONNumber(s) {
		return finite(f, 64)
	}
	return gojson.Number(s), nil
}

func isJSONNumber(s string) bool {
	return gojson.Valid([]byte(s)) && s != "" && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9'))
}

// decodeText yields a string. Structured values a driver has already decoded
// (uuid, json) are rendered back to their text form.
func decodeText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		if utf8.Valid(x) {
			return string(x), nil
		}
		return base64.StdEncoding.EncodeToString(x), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case map[string]any, []any, bool, float64:
		b, err := gojson.Marshal(x)
		if err != nil {
			return nil, errDegraded
		}
		return string(b), nil
	case fmt.Stringer:
		return x.String(), nil
	case driver.Valuer:
		inner, err := x.Value()
		if err == nil && inner != nil {
			return decodeText(inner)
		}
		return nil, errDegraded
	default:
		return nil, errDegraded
	}
}
