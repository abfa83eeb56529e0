package domain

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// Object is an open JSON object exchanged with handlers.
// Getters accept dotted paths ("stack.replicas") to reach nested objects.
type Object map[string]any

// Lookup returns the value at the dotted path and whether it exists.
func (o Object) Lookup(path string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if v, ok := o[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	var cur any = map[string]any(o)
	for _, part := range parts {
		m, ok := toMap(cur)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Get returns the raw value at path, or nil.
func (o Object) Get(path string) any {
	v, _ := o.Lookup(path)
	return v
}

// GetString returns the value at path converted to a string.
func (o Object) GetString(path string) string {
	return cast.ToString(o.Get(path))
}

// GetInt returns the value at path converted to an int.
func (o Object) GetInt(path string) int {
	return cast.ToInt(o.Get(path))
}

// GetInt64 returns the value at path converted to an int64.
func (o Object) GetInt64(path string) int64 {
	return cast.ToInt64(o.Get(path))
}

// GetFloat64 returns the value at path converted to a float64.
func (o Object) GetFloat64(path string) float64 {
	return cast.ToFloat64(o.Get(path))
}

// GetBool returns the value at path converted to a bool.
func (o Object) GetBool(path string) bool {
	return cast.ToBool(o.Get(path))
}

// GetDuration returns the value at path converted to a time.Duration.
// Bare numbers are read as nanoseconds, strings as Go durations ("5s").
func (o Object) GetDuration(path string) time.Duration {
	return cast.ToDuration(o.Get(path))
}

// GetSlice returns the value at path as a slice.
func (o Object) GetSlice(path string) []any {
	return cast.ToSlice(o.Get(path))
}

// GetStringSlice returns the value at path as a slice of strings.
func (o Object) GetStringSlice(path string) []string {
	return cast.ToStringSlice(o.Get(path))
}

// GetObject returns the nested object at path. Missing or non-object values yield nil.
func (o Object) GetObject(path string) Object {
	m, ok := toMap(o.Get(path))
	if !ok {
		return nil
	}
	return Object(m)
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Object:
		return m, m != nil
	case map[string]any:
		return m, m != nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// Has reports whether path resolves to a value.
func (o Object) Has(path string) bool {
	_, ok := o.Lookup(path)
	return ok
}

// Clone returns a shallow copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Decode copies the object into out (a pointer to a struct or map) using json tag names.
// Numeric strings and floats are converted to the target field types.
func (o Object) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(o))
}
