package row

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// MarshalCanonical produces the canonical encoding of a row or scalar.
//
// Rules:
//  1. Object keys sorted bytewise
//  2. No HTML escaping
//  3. Integers as decimal, floats always carry a '.' or exponent so 1 and 1.0 differ
//  4. []byte as {"$bytes":"<base64>"}, time.Time as {"$time":"<RFC3339Nano UTC>"}
//  5. NULL as null
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case float64:
		return marshalCanonicalFloat(buf, val)
	case float32:
		return marshalCanonicalFloat(buf, float64(val))
	case string:
		return marshalCanonicalString(buf, val)
	case []byte:
		buf.WriteString(`{"$bytes":`)
		if err := marshalCanonicalString(buf, base64.StdEncoding.EncodeToString(val)); err != nil {
			return err
		}
		buf.WriteByte('}')
	case time.Time:
		buf.WriteString(`{"$time":`)
		if err := marshalCanonicalString(buf, val.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		buf.WriteByte('}')
	case Row:
		return marshalCanonicalObject(buf, map[string]any(val))
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical encoding: %T", v)
	}
	return nil
}

func marshalCanonicalFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) {
		return fmt.Errorf("NaN is not encodable")
	}
	if math.IsInf(f, 0) {
		// SQLite stores ±Inf as REAL; keep it distinguishable from any string.
		if f > 0 {
			buf.WriteString(`{"$float":"+Inf"}`)
		} else {
			buf.WriteString(`{"$float":"-Inf"}`)
		}
		return nil
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".e") {
		s += ".0"
	}
	buf.WriteString(s)
	return nil
}

// marshalCanonicalString writes a JSON string with HTML escaping disabled.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
