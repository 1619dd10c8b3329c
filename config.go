package hancho

import (
	"fmt"

	"dario.cat/mergo"
)

// Config is a keyed container supporting prototypal inheritance: a lookup
// that misses locally falls through to Parent. Config is the backbone of
// Hancho's Rule/Task data model (spec §3, §4.1).
//
// Grounded on pk/config.go's flat struct, generalized into a parent-chained
// container; Merge's deep-merge semantics are implemented with
// dario.cat/mergo the way compozy-compozy's engine/core/params.go merges
// Input/Output maps.
type Config struct {
	parent *Config
	order  []string
	values map[string]any
}

// NewConfig returns an empty root Config (no parent).
func NewConfig() *Config {
	return &Config{values: map[string]any{}}
}

// NewConfigFrom returns a root Config seeded with the given bindings, in the
// order they're provided.
func NewConfigFrom(keys []string, values map[string]any) *Config {
	c := NewConfig()
	for _, k := range keys {
		c.Set(k, values[k])
	}
	return c
}

// Get returns the value bound to key, walking the parent chain when absent
// locally. err wraps ErrKeyMissing when the key is absent on the entire
// chain.
func (c *Config) Get(key string) (any, error) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyMissing, key)
}

// GetOr returns the value bound to key, or def if the key is absent anywhere
// on the chain.
func (c *Config) GetOr(key string, def any) any {
	v, err := c.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Has reports whether key resolves anywhere on the parent chain.
func (c *Config) Has(key string) bool {
	_, err := c.Get(key)
	return err == nil
}

// Set binds key to value locally, shadowing any parent binding.
func (c *Config) Set(key string, value any) {
	if c.values == nil {
		c.values = map[string]any{}
	}
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = value
}

// Keys returns the locally-bound keys (not the parent's) in insertion order.
func (c *Config) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// LocalValues returns a shallow copy of the locally-bound map (not the
// parent's).
func (c *Config) LocalValues() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Parent returns c's parent Config, or nil at the root.
func (c *Config) Parent() *Config {
	return c.parent
}

// Fork returns a new Config whose parent is c and whose local bindings are
// overrides, applied in key order for determinism.
func (c *Config) Fork(overrides map[string]any) *Config {
	child := &Config{parent: c, values: map[string]any{}}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		child.Set(k, overrides[k])
	}
	return child
}

// ForkOrdered is like Fork but preserves the given key order (used when
// overrides come from an already-ordered source, e.g. CLI args or another
// Config's Keys()).
func (c *Config) ForkOrdered(keys []string, overrides map[string]any) *Config {
	child := &Config{parent: c, values: map[string]any{}}
	for _, k := range keys {
		child.Set(k, overrides[k])
	}
	return child
}

// Merge deep-merges other's local bindings onto c: a later non-nil value
// replaces the earlier value; nested Configs recurse; nil on the
// right-hand side leaves the left untouched; lists are replaced wholesale
// (per spec §4.1, mergo.WithOverride gives us "later wins" while we special-
// case Config-in-Config recursion and nil-preserves-left ourselves, since
// mergo has no notion of Hancho's prototypal container).
func (c *Config) Merge(other *Config) error {
	if other == nil {
		return nil
	}
	for _, k := range other.order {
		v := other.values[k]
		if v == nil {
			continue // nil on the right-hand side leaves the left untouched.
		}
		if srcChild, ok := v.(*Config); ok {
			if dstChild, ok := c.values[k].(*Config); ok {
				if err := dstChild.Merge(srcChild); err != nil {
					return fmt.Errorf("merging key %q: %w", k, err)
				}
				continue
			}
			c.Set(k, srcChild)
			continue
		}
		if merged, ok, err := mergeScalar(c.values[k], v); ok {
			if err != nil {
				return fmt.Errorf("merging key %q: %w", k, err)
			}
			c.Set(k, merged)
			continue
		}
		c.Set(k, v)
	}
	return nil
}

// mergeScalar uses mergo to deep-merge two plain maps (the only shape mergo
// can usefully help with here); everything else is a wholesale replace,
// which is what spec §4.1 calls for on lists and primitives.
func mergeScalar(dst, src any) (any, bool, error) {
	dstMap, dstOK := dst.(map[string]any)
	srcMap, srcOK := src.(map[string]any)
	if !dstOK || !srcOK {
		return nil, false, nil
	}
	result := make(map[string]any, len(dstMap))
	for k, v := range dstMap {
		result[k] = v
	}
	if err := mergo.Merge(&result, srcMap, mergo.WithOverride); err != nil {
		return nil, true, err
	}
	return result, true, nil
}

// MergeValues merges a plain map of overrides onto c in the given key
// order: a non-nil value replaces the binding, a nil value is a no-op.
// Unlike Merge it does not recurse into nested Configs or maps; every
// non-nil value replaces the existing binding wholesale.
func (c *Config) MergeValues(keys []string, overrides map[string]any) {
	for _, k := range keys {
		v := overrides[k]
		if v == nil {
			continue
		}
		c.Set(k, v)
	}
}
