package normalize

// Source is one named candidate input, e.g. the output of the buy-orders-only
// simulation. A nil Value means the producer did not run.
type Source struct {
	Name  string
	Value any
}

func From(name string, v any) Source { return Source{Name: name, Value: v} }

// Only narrows sources to the one called name, so records that index into
// each other are read from the same producer. An empty name yields nothing.
func Only(name string, sources ...Source) []Source {
	for _, s := range sources {
		if name != "" && s.Name == name {
			return []Source{s}
		}
	}
	return nil
}

// Adapter recognises one input shape and lifts it to a flat list of raw records.
type Adapter struct {
	Name  string
	Match func(v any) ([]any, bool)
}

// Resolved is the outcome of a fallback chain. Source and Adapter are empty
// when nothing matched. Raw holds the matched records as decoded, aligned
// with Records.
type Resolved[T any] struct {
	Records []T
	Raw     []any
	Source  string
	Adapter string
}

func (r Resolved[T]) Found() bool { return r.Adapter != "" }

// Resolve tries sources in priority order and, per source, adapters in order.
// The first match wins; no match yields an empty result.
func Resolve(sources []Source, adapters ...Adapter) Resolved[any] {
	for _, src := range sources {
		if src.Value == nil {
			continue
		}
		for _, a := range adapters {
			if recs, ok := a.Match(src.Value); ok {
				return Resolved[any]{Records: recs, Source: src.Name, Adapter: a.Name}
			}
		}
	}
	return Resolved[any]{}
}

func mapResolved[T any](r Resolved[any], conv func(any) T) Resolved[T] {
	out := Resolved[T]{Source: r.Source, Adapter: r.Adapter, Raw: r.Records, Records: make([]T, 0, len(r.Records))}
	for _, rec := range r.Records {
		out.Records = append(out.Records, conv(rec))
	}
	return out
}

// FieldArray matches a simulation-style result exposing key as an array,
// either directly or under ".data" / ".result".
func FieldArray(key string) Adapter {
	return Adapter{
		Name: "field:" + key,
		Match: func(v any) ([]any, bool) {
			for _, candidate := range []any{v, Field(v, "data"), Field(v, "result")} {
				if arr, ok := Field(candidate, key).([]any); ok {
					return arr, true
				}
			}
			return nil, false
		},
	}
}

// RowArray matches a flat array whose first element satisfies looksLike.
// An empty array is an authoritative "no records".
func RowArray(name string, looksLike func(rec any) bool) Adapter {
	return Adapter{
		Name: name,
		Match: func(v any) ([]any, bool) {
			arr, ok := Array(v)
			if !ok {
				return nil, false
			}
			if len(arr) > 0 && looksLike != nil && !looksLike(arr[0]) {
				return nil, false
			}
			return arr, true
		},
	}
}

// HasAny reports whether rec is an object carrying at least one of keys.
func HasAny(keys ...string) func(rec any) bool {
	return func(rec any) bool {
		for _, k := range keys {
			if Field(rec, k) != nil {
				return true
			}
		}
		return false
	}
}
