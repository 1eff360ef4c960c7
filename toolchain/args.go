package toolchain

import (
	"reflect"
	"strings"
	"time"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// acceptedTimeLayouts are tried in order for strings bound to time.Time fields. Models
// often drop the zone or the seconds; those values are read as UTC.
var acceptedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// coerceArgs prepares decoded JSON arguments for encoding/json decoding into t. Strings
// bound for time.Time fields are normalized to RFC 3339 and strings bound for
// time.Duration fields become nanosecond counts. Anything else passes through unchanged and
// is left for json.Unmarshal to accept or reject.
func coerceArgs(args map[string]any, t reflect.Type) map[string]any {
	fields := fieldTypes(t)
	if args == nil || len(fields) == 0 {
		return args
	}

	out := make(map[string]any, len(args))
	for key, value := range args {
		if ft, ok := fields[strings.ToLower(key)]; ok {
			value = coerce(value, ft)
		}
		out[key] = value
	}
	return out
}

// fieldTypes indexes the exported fields of struct type t by lowercased JSON name, the
// same case-insensitive match encoding/json applies.
func fieldTypes(t reflect.Type) map[string]reflect.Type {
	if t.Kind() != reflect.Struct {
		return nil
	}
	fields := make(map[string]reflect.Type, t.NumField())
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[strings.ToLower(name)] = f.Type
	}
	return fields
}

func coerce(value any, t reflect.Type) any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch v := value.(type) {
	case string:
		switch t {
		case timeType:
			for _, layout := range acceptedTimeLayouts {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts.Format(time.RFC3339Nano)
				}
			}
		case durationType:
			if d, err := time.ParseDuration(v); err == nil {
				return int64(d)
			}
		}
	case map[string]any:
		return coerceArgs(v, t)
	case []any:
		if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
			return value
		}
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = coerce(item, t.Elem())
		}
		return items
	}
	return value
}
