package row

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrIncomparable is returned when two timestamps have kinds that cannot be
// ordered against each other (e.g. a number and a free-text string).
var ErrIncomparable = errors.New("incomparable timestamps")

// timeLayouts are the textual timestamp formats SQLite applications commonly store.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type tsKind int

const (
	kindMissing tsKind = iota
	kindNumber
	kindTime
	kindText
)

type tsValue struct {
	kind tsKind
	num  float64
	t    time.Time
	text []byte
}

func classify(v any) tsValue {
	switch val := v.(type) {
	case nil:
		return tsValue{kind: kindMissing}
	case int64:
		return tsValue{kind: kindNumber, num: float64(val)}
	case int:
		return tsValue{kind: kindNumber, num: float64(val)}
	case float64:
		return tsValue{kind: kindNumber, num: val}
	case bool:
		if val {
			return tsValue{kind: kindNumber, num: 1}
		}
		return tsValue{kind: kindNumber, num: 0}
	case time.Time:
		return tsValue{kind: kindTime, t: val}
	case []byte:
		return tsValue{kind: kindText, text: val}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return tsValue{kind: kindNumber, num: f}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return tsValue{kind: kindTime, t: t}
			}
		}
		return tsValue{kind: kindText, text: []byte(val)}
	default:
		return tsValue{kind: kindText, text: []byte(fmt.Sprint(val))}
	}
}

// CompareTimestamps orders two conflict timestamps, returning -1, 0 or +1.
//
// A missing (nil) timestamp behaves as 0 against numbers and sorts before any
// time or text value. Numeric strings compare as numbers and recognised date
// strings compare as times. Mixing numbers, times and free text returns
// ErrIncomparable.
func CompareTimestamps(a, b any) (int, error) {
	va, vb := classify(a), classify(b)

	if va.kind == kindMissing && vb.kind == kindMissing {
		return 0, nil
	}
	if va.kind == kindMissing {
		if vb.kind == kindNumber {
			return cmpFloat(0, vb.num), nil
		}
		return -1, nil
	}
	if vb.kind == kindMissing {
		if va.kind == kindNumber {
			return cmpFloat(va.num, 0), nil
		}
		return 1, nil
	}
	if va.kind != vb.kind {
		return 0, fmt.Errorf("%w: %T(%v) vs %T(%v)", ErrIncomparable, a, a, b, b)
	}

	switch va.kind {
	case kindNumber:
		return cmpFloat(va.num, vb.num), nil
	case kindTime:
		return va.t.Compare(vb.t), nil
	default:
		return bytes.Compare(va.text, vb.text), nil
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
