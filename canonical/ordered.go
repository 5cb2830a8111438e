package canonical

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Map is the order-preserving intermediate for CBOR maps. Keys are unique, and
// iteration follows insertion order. Encode writes entries in exactly this order, so
// whoever builds the Map decides the byte layout; Normalize always inserts keys in
// DAG-CBOR canonical order.
type Map struct {
	m *linkedhashmap.Map
}

func NewMap() *Map {
	return &Map{m: linkedhashmap.New()}
}

// Put inserts or replaces a value. Replacing keeps the key's original position.
func (m *Map) Put(key string, value any) {
	m.m.Put(key, value)
}

func (m *Map) Get(key string) (any, bool) {
	return m.m.Get(key)
}

func (m *Map) Len() int {
	return m.m.Size()
}

func (m *Map) Keys() []string {
	keys := make([]string, 0, m.m.Size())
	for _, k := range m.m.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Each calls fn for every entry, in order.
func (m *Map) Each(fn func(key string, value any)) {
	m.m.Each(func(k interface{}, v interface{}) {
		fn(k.(string), v)
	})
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return ToJSON(m)
}

// keyLess orders map keys the way DAG-CBOR requires: shorter keys first, then
// bytewise comparison.
func keyLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// IsCanonicalOrder reports whether the map's keys are in DAG-CBOR order.
func (m *Map) IsCanonicalOrder() bool {
	keys := m.Keys()
	for i := 1; i < len(keys); i++ {
		if !keyLess(keys[i-1], keys[i]) {
			return false
		}
	}
	return true
}
