package http

import (
	"net/url"
	"sort"
	"strings"
)

// ParameterMap is an ordered list of name/value pairs used for query strings
// and URL-encoded form bodies. Insertion order is preserved so encoding is
// stable. Duplicate keys only exist when added explicitly with Add.
//
// Like a nil map, a nil *ParameterMap reads as empty and Del on it is a
// no-op, but Set and Add need a map from NewParameterMap.
type ParameterMap struct {
	entries []parameter
}

type parameter struct {
	key   string
	value string
}

func NewParameterMap() *ParameterMap {
	return &ParameterMap{}
}

// FromMap builds a ParameterMap from a plain map. Keys are sorted so the
// result does not depend on map iteration order.
func FromMap(m map[string]string) *ParameterMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewParameterMap()
	for _, k := range keys {
		p.Add(k, m[k])
	}
	return p
}

// Set replaces the value of the first entry with the given key, or appends a
// new entry when the key is not present.
func (p *ParameterMap) Set(key, value string) *ParameterMap {
	for i := range p.entries {
		if p.entries[i].key == key {
			p.entries[i].value = value
			return p
		}
	}
	p.entries = append(p.entries, parameter{key: key, value: value})
	return p
}

// Add appends an entry even if the key already exists.
func (p *ParameterMap) Add(key, value string) *ParameterMap {
	p.entries = append(p.entries, parameter{key: key, value: value})
	return p
}

// Get returns the value of the first entry with the given key.
func (p *ParameterMap) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, e := range p.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

func (p *ParameterMap) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Del removes every entry with the given key.
func (p *ParameterMap) Del(key string) *ParameterMap {
	if p == nil {
		return nil
	}
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.key != key {
			kept = append(kept, e)
		}
	}
	p.entries = kept
	return p
}

func (p *ParameterMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

func (p *ParameterMap) IsEmpty() bool {
	return p.Len() == 0
}

// Keys returns the keys in insertion order, including duplicates.
func (p *ParameterMap) Keys() []string {
	keys := make([]string, 0, p.Len())
	if p == nil {
		return keys
	}
	for _, e := range p.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Each calls fn for every entry in insertion order.
func (p *ParameterMap) Each(fn func(key, value string)) {
	if p == nil {
		return
	}
	for _, e := range p.entries {
		fn(e.key, e.value)
	}
}

func (p *ParameterMap) Clone() *ParameterMap {
	c := NewParameterMap()
	if p == nil {
		return c
	}
	c.entries = append(c.entries, p.entries...)
	return c
}

// Encode renders the entries as key=value pairs joined by '&'. Values are
// query-escaped, keys are written as-is, and an empty value produces a bare
// key.
func (p *ParameterMap) Encode() string {
	if p.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	for _, e := range p.entries {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(e.key)
		if e.value != "" {
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(e.value))
		}
	}
	return sb.String()
}

// EncodeBytes returns the UTF-8 bytes of Encode.
func (p *ParameterMap) EncodeBytes() []byte {
	return []byte(p.Encode())
}

func (p *ParameterMap) String() string {
	return p.Encode()
}

// DecodeParameters parses an encoded parameter string back into a map.
// Values are unescaped; a pair without '=' decodes to an empty value.
func DecodeParameters(encoded string) (*ParameterMap, error) {
	p := NewParameterMap()
	if encoded == "" {
		return p, nil
	}

	for _, pair := range strings.Split(encoded, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		p.Add(key, unescaped)
	}
	return p, nil
}
