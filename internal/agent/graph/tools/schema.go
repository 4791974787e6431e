package tools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// Validate checks args against d and returns a copy with defaults filled in
// and values coerced to their declared Go types: integer -> int,
// number -> float64, string -> string, boolean -> bool, arrays -> []string,
// []float64, []int or []bool.
func Validate(d Descriptor, args Args) (Args, error) {
	fixed := Args{}
	var problems []errx.FieldError

	declared := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		declared[p.Name] = true
	}
	var unknown []string
	for k := range args {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		problems = append(problems, errx.FieldError{Name: k, Reason: "unknown field"})
	}

	for _, p := range d.Params {
		raw, ok := args[p.Name]
		if !ok || raw == nil {
			switch {
			case p.Default != nil:
				fixed[p.Name] = p.Default
			case p.Required:
				problems = append(problems, errx.FieldError{Name: p.Name, Reason: "required but missing"})
			}
			continue
		}

		v, reason := coerce(p.Type, p.Items, raw)
		if reason == "" && p.Min != nil {
			if n, isNum := asFloat(v); isNum && n < *p.Min {
				reason = fmt.Sprintf("must be >= %v", *p.Min)
			}
		}
		if reason != "" {
			problems = append(problems, errx.FieldError{Name: p.Name, Reason: reason})
			continue
		}
		fixed[p.Name] = v
	}

	if len(problems) > 0 {
		return nil, &errx.SchemaValidationError{Tool: d.Name, Fields: problems}
	}
	return fixed, nil
}

func coerce(typ, items schema.DataType, raw any) (any, string) {
	switch typ {
	case schema.String:
		if s, ok := raw.(string); ok {
			return s, ""
		}
		return nil, fmt.Sprintf("expected string, got %T", raw)
	case schema.Integer:
		f, ok := numeric(raw)
		if !ok {
			return nil, fmt.Sprintf("expected integer, got %v", raw)
		}
		n, reason := toInt(f)
		if reason != "" {
			return nil, reason
		}
		return n, ""
	case schema.Number:
		f, ok := numeric(raw)
		if !ok || math.IsInf(f, 0) {
			return nil, fmt.Sprintf("expected number, got %v", raw)
		}
		return f, ""
	case schema.Boolean:
		switch b := raw.(type) {
		case bool:
			return b, ""
		case string:
			if v, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return v, ""
			}
		}
		return nil, fmt.Sprintf("expected boolean, got %v", raw)
	case schema.Array:
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Sprintf("expected array, got %T", raw)
		}
		return coerceArray(items, list)
	}
	return nil, "unsupported type " + string(typ)
}

// toInt accepts whole numbers representable as int.
func toInt(f float64) (int, string) {
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Sprintf("expected integer, got %v", f)
	}
	if f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, fmt.Sprintf("integer %v out of range", f)
	}
	return int(f), ""
}

func coerceArray(items schema.DataType, list []any) (any, string) {
	switch items {
	case schema.String:
		out := make([]string, len(list))
		for i, v := range list {
			switch s := v.(type) {
			case string:
				out[i] = s
			case float64:
				out[i] = strconv.FormatFloat(s, 'f', -1, 64)
			case bool:
				out[i] = strconv.FormatBool(s)
			default:
				return nil, fmt.Sprintf("item %d: expected string, got %T", i, v)
			}
		}
		return out, ""
	case schema.Number:
		out := make([]float64, len(list))
		for i, v := range list {
			f, ok := numeric(v)
			if !ok || math.IsInf(f, 0) {
				return nil, fmt.Sprintf("item %d: expected number, got %v", i, v)
			}
			out[i] = f
		}
		return out, ""
	case schema.Integer:
		out := make([]int, len(list))
		for i, v := range list {
			f, ok := numeric(v)
			if !ok {
				return nil, fmt.Sprintf("item %d: expected integer, got %v", i, v)
			}
			n, reason := toInt(f)
			if reason != "" {
				return nil, fmt.Sprintf("item %d: %s", i, reason)
			}
			out[i] = n
		}
		return out, ""
	case schema.Boolean:
		out := make([]bool, len(list))
		for i, v := range list {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Sprintf("item %d: expected boolean, got %T", i, v)
			}
			out[i] = b
		}
		return out, ""
	}
	return nil, "unsupported item type " + string(items)
}

// numeric accepts JSON numbers and numeric strings.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) Strings(name string) []string {
	v, _ := a[name].([]string)
	return v
}

func (a Args) Floats(name string) []float64 {
	v, _ := a[name].([]float64)
	return v
}

func ptr[T any](v T) *T {
	return &v
}
