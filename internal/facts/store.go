package facts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Store is an insertion-ordered map from dot-delimited keys to flat values.
// The zero value is not usable; call NewStore.
type Store struct {
	keys   []string
	values map[string]Value
}

func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	out := &Store{
		keys:   make([]string, len(s.keys)),
		values: make(map[string]Value, len(s.values)),
	}
	copy(out.keys, s.keys)
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

// set is unexported: writes go through the Mapper.
func (s *Store) set(key string, v Value) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

func (s *Store) Len() int { return len(s.keys) }

// Keys returns keys in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Range calls fn for each fact in insertion order until fn returns false.
func (s *Store) Range(fn func(key string, v Value) bool) {
	for _, k := range s.keys {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

func (s *Store) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Text returns the display text of a fact, or "" when absent or null.
func (s *Store) Text(key string) string {
	v, ok := s.values[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

// Number returns a numeric fact.
func (s *Store) Number(key string) (float64, bool) {
	v, ok := s.values[key]
	if !ok {
		return 0, false
	}
	return v.Num()
}

// Truth returns a boolean fact. The second result is false when the fact is unknown.
func (s *Store) Truth(key string) (bool, bool) {
	v, ok := s.values[key]
	if !ok {
		return false, false
	}
	return v.Truth()
}

// TextList returns the items of an array fact as text. A scalar fact yields one item.
func (s *Store) TextList(key string) []string {
	v, ok := s.values[key]
	if !ok || v.IsNull() {
		return nil
	}
	if !v.IsArray() {
		if t := strings.TrimSpace(v.Text()); t != "" {
			return []string{t}
		}
		return nil
	}
	var out []string
	for _, it := range v.items {
		if t := strings.TrimSpace(it.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// WithPrefix returns the keys starting with prefix, sorted.
func (s *Store) WithPrefix(prefix string) []string {
	var out []string
	for _, k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes an object with keys in insertion order.
func (s *Store) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := s.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", k, err)
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a flat object, keeping document order. A nested object
// value fails with ErrNotFlat so a polluted row is never loaded silently.
func (s *Store) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fact store must be a JSON object")
	}

	out := NewStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fact store key must be a string")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("fact %q: %w", key, err)
		}
		v, ok := valueFromAny(raw, true)
		if !ok {
			return fmt.Errorf("fact %q: %w", key, ErrNotFlat)
		}
		out.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = *out
	return nil
}

// FromJSON decodes a persisted store.
func FromJSON(data []byte) (*Store, error) {
	s := NewStore()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
