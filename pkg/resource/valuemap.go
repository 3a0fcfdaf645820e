// ABOUTME: Insertion-ordered property bag attached to every resource
// ABOUTME: Typed getters with defaults; values are stored exactly as given

package resource

import (
	"iter"
	"slices"

	"github.com/spf13/cast"
)

// ValueMap is a mutable, insertion-ordered map of property names to values.
// The zero value is ready to use.
type ValueMap struct {
	keys []string
	vals map[string]any
}

// NewValueMap creates a value map seeded with props.
// Keys of a plain Go map have no stable order, so they are added sorted.
func NewValueMap(props map[string]any) *ValueMap {
	vm := &ValueMap{}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		vm.Put(k, props[k])
	}
	return vm
}

// Get returns the raw value stored under key
func (vm *ValueMap) Get(key string) (any, bool) {
	if vm.vals == nil {
		return nil, false
	}
	v, ok := vm.vals[key]
	return v, ok
}

// Has reports whether key is present
func (vm *ValueMap) Has(key string) bool {
	_, ok := vm.Get(key)
	return ok
}

// Put stores value under key, keeping the original position of an existing key
func (vm *ValueMap) Put(key string, value any) {
	if vm.vals == nil {
		vm.vals = make(map[string]any)
	}
	if _, ok := vm.vals[key]; !ok {
		vm.keys = append(vm.keys, key)
	}
	vm.vals[key] = value
}

// Remove deletes key and reports whether it was present
func (vm *ValueMap) Remove(key string) bool {
	if _, ok := vm.Get(key); !ok {
		return false
	}
	delete(vm.vals, key)
	vm.keys = slices.DeleteFunc(vm.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns a copy of the keys in insertion order
func (vm *ValueMap) Keys() []string {
	return slices.Clone(vm.keys)
}

// Len returns the number of properties
func (vm *ValueMap) Len() int {
	return len(vm.keys)
}

// All iterates properties in insertion order
func (vm *ValueMap) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range vm.Keys() {
			v, ok := vm.Get(k)
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// AsMap returns a shallow copy as a plain map
func (vm *ValueMap) AsMap() map[string]any {
	out := make(map[string]any, len(vm.keys))
	for k, v := range vm.All() {
		out[k] = v
	}
	return out
}

// GetString returns the value under key converted to a string, or def if absent
// or not convertible
func (vm *ValueMap) GetString(key, def string) string {
	v, ok := vm.Get(key)
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// GetStrings returns the value under key as a string slice.
// A single scalar is returned as a one-element slice; absent keys yield nil.
func (vm *ValueMap) GetStrings(key string) []string {
	v, ok := vm.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case string:
		return []string{t}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

// GetBool returns the value under key as a bool, or def if absent or not convertible
func (vm *ValueMap) GetBool(key string, def bool) bool {
	v, ok := vm.Get(key)
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}
