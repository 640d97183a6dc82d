package session

// Key names a typed slot. Reading an unset slot yields Unknown, which
// documents what "not known yet" means for that slot.
type Key[T any] struct {
	Name    string
	Unknown T
}

func NewKey[T any](name string, unknown T) Key[T] {
	return Key[T]{Name: name, Unknown: unknown}
}

// Load returns the slot value or the key's unknown sentinel.
func Load[T any](c *Context, k Key[T]) T {
	v, _ := Lookup(c, k)
	return v
}

// Lookup returns the slot value and whether it was ever stored.
func Lookup[T any](c *Context, k Key[T]) (T, bool) {
	c.slotMu.RLock()
	defer c.slotMu.RUnlock()
	if v, ok := c.slots[k.Name]; ok {
		if t, ok := v.(T); ok {
			return t, true
		}
	}
	return k.Unknown, false
}

func Store[T any](c *Context, k Key[T], v T) {
	c.slotMu.Lock()
	c.slots[k.Name] = v
	c.slotMu.Unlock()
}

// Swap stores v and returns the previous value, or the sentinel.
func Swap[T any](c *Context, k Key[T], v T) T {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	old := k.Unknown
	if prev, ok := c.slots[k.Name]; ok {
		if t, ok := prev.(T); ok {
			old = t
		}
	}
	c.slots[k.Name] = v
	return old
}

// Update replaces the slot with fn applied to its current value atomically.
func Update[T any](c *Context, k Key[T], fn func(old T) T) T {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	old := k.Unknown
	if prev, ok := c.slots[k.Name]; ok {
		if t, ok := prev.(T); ok {
			old = t
		}
	}
	v := fn(old)
	c.slots[k.Name] = v
	return v
}

func Clear[T any](c *Context, k Key[T]) {
	c.slotMu.Lock()
	delete(c.slots, k.Name)
	c.slotMu.Unlock()
}
