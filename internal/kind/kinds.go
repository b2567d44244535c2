package kind

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// temporalLayouts are accepted by the temporal parser, in order.
var temporalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// maxEnumScan bounds the search for an integer enum value by its name.
const maxEnumScan = 256

// --- text ---

type textKind struct{}

func (textKind) Name() string { return NameText }

func (textKind) Text(v any) string {
	switch s := deref(v).(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

func (k textKind) Parse(raw any, t reflect.Type) (any, error) {
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}
	return reflect.ValueOf(s).Convert(t).Interface(), nil
}

func (textKind) ColumnType(reflect.Type) string { return "text" }

// --- numeric ---

type numericKind struct{}

func (numericKind) Name() string { return NameNumeric }

func (numericKind) Text(v any) string {
	v = deref(v)
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(v)
}

func (numericKind) Parse(raw any, t reflect.Type) (any, error) {
	f, isInt, n, err := toNumber(raw)
	if err != nil {
		return nil, err
	}
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isInt {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%v is not an integer", raw)
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("%v overflows %s", raw, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !isInt {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%v is not an integer", raw)
			}
			n = int64(f)
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return nil, fmt.Errorf("%v overflows %s", raw, t)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		if isInt {
			f = float64(n)
		}
		if out.OverflowFloat(f) {
			return nil, fmt.Errorf("%v overflows %s", raw, t)
		}
		out.SetFloat(f)
	default:
		return nil, fmt.Errorf("%s is not numeric", t)
	}
	return out.Interface(), nil
}

func (numericKind) ColumnType(t reflect.Type) string {
	switch Indirect(t).Kind() {
	case reflect.Float32, reflect.Float64:
		return "decimal"
	}
	return "bigint"
}

// toNumber extracts a number from raw. isInt reports whether n holds the
// value exactly; otherwise f does.
func toNumber(raw any) (f float64, isInt bool, n int64, err error) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return 0, true, rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return 0, true, int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), false, 0, nil
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if i, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			return 0, true, i, nil
		}
		fv, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return 0, false, 0, fmt.Errorf("%q is not a number", s)
		}
		return fv, false, 0, nil
	}
	return 0, false, 0, fmt.Errorf("%v is not a number", raw)
}

// --- temporal ---

type temporalKind struct{}

func (temporalKind) Name() string { return NameTemporal }

func (temporalKind) Text(v any) string {
	switch tv := deref(v).(type) {
	case nil:
		return ""
	case time.Time:
		return tv.Format(time.RFC3339)
	case string:
		return tv
	default:
		return fmt.Sprint(tv)
	}
}

func (temporalKind) Parse(raw any, t reflect.Type) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range temporalLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return reflect.ValueOf(ts).Convert(t).Interface(), nil
			}
		}
		return nil, fmt.Errorf("%q is not a valid date/time", s)
	}
	return nil, fmt.Errorf("%v is not a valid date/time", raw)
}

func (temporalKind) ColumnType(reflect.Type) string { return "timestamp" }

// --- boolean ---

type booleanKind struct{}

func (booleanKind) Name() string { return NameBoolean }

func (booleanKind) Text(v any) string {
	switch b := deref(v).(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(b)
	case int64:
		return strconv.FormatBool(b != 0)
	default:
		return fmt.Sprint(b)
	}
}

func (booleanKind) Parse(raw any, t reflect.Type) (any, error) {
	var b bool
	switch v := raw.(type) {
	case bool:
		b = v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", v)
		}
		b = parsed
	case float64:
		b = v != 0
	case int64:
		b = v != 0
	case int:
		b = v != 0
	default:
		return nil, fmt.Errorf("%v is not a boolean", raw)
	}
	return reflect.ValueOf(b).Convert(t).Interface(), nil
}

func (booleanKind) ColumnType(reflect.Type) string { return "boolean" }

// --- enumerated ---

type enumKind struct{}

func (enumKind) Name() string { return NameEnum }

func (enumKind) Text(v any) string {
	switch e := deref(v).(type) {
	case nil:
		return ""
	case fmt.Stringer:
		return e.String()
	default:
		return fmt.Sprint(e)
	}
}

func (enumKind) Parse(raw any, t reflect.Type) (any, error) {
	if t.Kind() == reflect.String {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%v is not a valid %s", raw, t.Name())
		}
		return reflect.ValueOf(s).Convert(t).Interface(), nil
	}
	if s, ok := raw.(string); ok {
		name := strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(name, 64); err != nil {
			return enumByName(name, t)
		}
	}
	return numericKind{}.Parse(raw, t)
}

func (enumKind) ColumnType(t reflect.Type) string {
	if Indirect(t).Kind() == reflect.String {
		return "text"
	}
	return "int"
}

// enumByName finds the integer enum value of t whose String() equals name.
func enumByName(name string, t reflect.Type) (any, error) {
	v := reflect.New(t).Elem()
	for i := 0; i < maxEnumScan; i++ {
		if v.CanInt() {
			v.SetInt(int64(i))
		} else {
			v.SetUint(uint64(i))
		}
		if s, ok := v.Interface().(fmt.Stringer); ok && strings.EqualFold(s.String(), name) {
			return v.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%q is not a valid %s", name, t.Name())
}
