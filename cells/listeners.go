package cells

import "log"

// entry is one slot in a listener group. Either a plain handler, a filter,
// or a dependency edge (consumer plus the generation it was recorded
// against). Edges whose generation no longer matches the consumer's current
// one are inert and pruned lazily instead of eagerly scanned out.
type entry struct {
	handler  Handler
	filter   Filter
	consumer *Cell
	gen      uint64
	rank     int
	obsolete bool
}

func (e *entry) dead() bool {
	if e.obsolete {
		return true
	}
	if e.consumer != nil {
		return e.consumer.ctype == Static || e.gen != e.consumer.gen
	}
	return false
}

func (c *Cell) addEntry(g Group, e *entry) {
	if c.groups == nil {
		c.groups = map[Group][]*entry{}
	}
	c.groups[g] = append(c.groups[g], e)
}

// live prunes dead entries in place, releasing the group storage when it
// empties, and returns a snapshot safe to iterate while new entries are
// appended mid-cascade.
func (c *Cell) live(g Group) []*entry {
	all := c.groups[g]
	if len(all) == 0 {
		return nil
	}
	kept := all[:0]
	for _, e := range all {
		if !e.dead() {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(c.groups, g)
		return nil
	}
	c.groups[g] = kept
	out := make([]*entry, len(kept))
	copy(out, kept)
	return out
}

// Subscribe appends h to the named listener group and returns an
// unsubscribe function. Subscribing on a Static cell can never fire, so it
// warns, does nothing, and reports ErrFrozenMutation.
func (c *Cell) Subscribe(g Group, h Handler) (func(), error) {
	return c.subscribe(g, h, false, 0)
}

// SubscribeFirst prepends h so it runs before previously attached
// listeners in the same group.
func (c *Cell) SubscribeFirst(g Group, h Handler) (func(), error) {
	return c.subscribe(g, h, true, 0)
}

// SubscribeWithPriority inserts h sorted by rank, stable among equals.
// Lower ranks fire earlier; Subscribe uses rank 0.
func (c *Cell) SubscribeWithPriority(g Group, rank int, h Handler) (func(), error) {
	return c.subscribe(g, h, false, rank)
}

func (c *Cell) subscribe(g Group, h Handler, first bool, rank int) (func(), error) {
	if c.ctype == Static {
		log.Printf("cells: listener on static cell can never fire, ignored")
		return func() {}, ErrFrozenMutation
	}
	e := &entry{handler: h, rank: rank}
	if first {
		if c.groups == nil {
			c.groups = map[Group][]*entry{}
		}
		c.groups[g] = append([]*entry{e}, c.groups[g]...)
	} else {
		// plain Subscribe is rank 0 and goes through the same stable
		// insertion, so it stays ahead of higher-ranked listeners
		c.insertRanked(g, e)
	}
	return func() { e.obsolete = true }, nil
}

func (c *Cell) insertRanked(g Group, e *entry) {
	if c.groups == nil {
		c.groups = map[Group][]*entry{}
	}
	all := c.groups[g]
	at := len(all)
	for i, other := range all {
		if other.rank > e.rank {
			at = i
			break
		}
	}
	all = append(all, nil)
	copy(all[at+1:], all[at:])
	all[at] = e
	c.groups[g] = all
}

// AttachFilter appends flt to the filter chain and recomputes immediately,
// since filters change the derived value even without an upstream change.
// The returned detach function also recomputes.
func (c *Cell) AttachFilter(flt Filter) (func() error, error) {
	if c.ctype == Static {
		return nil, ErrFrozenMutation
	}
	if flt == nil {
		return nil, ErrInvalidExpression
	}
	e := &entry{filter: flt}
	c.addEntry(groupFilter, e)
	detach := func() error {
		e.obsolete = true
		return c.update(false)
	}
	return detach, c.update(false)
}

// fire invokes a synchronous group (pre-update, post-update) in order.
// Handler errors go to the runtime error callback.
func (c *Cell) fire(g Group, v any) {
	for _, e := range c.live(g) {
		if e.obsolete {
			continue
		}
		if err := e.handler(v); err != nil {
			c.rt.fail(c, err)
		}
	}
}

// dispatchGroup feeds the group's live entries through the runtime's shared
// FIFO queue. Dependency edges re-check their generation at invocation
// time, so a handle superseded while queued is a no-op.
func (c *Cell) dispatchGroup(g Group, v any) {
	entries := c.live(g)
	if len(entries) == 0 {
		return
	}
	thunks := make([]func() error, 0, len(entries))
	for _, e := range entries {
		e := e
		if e.consumer != nil {
			cons, gen := e.consumer, e.gen
			thunks = append(thunks, func() error {
				if cons.gen != gen || cons.ctype == Static {
					return nil
				}
				if err := cons.update(false); err != nil {
					cons.rt.fail(cons, err)
				}
				return nil
			})
			continue
		}
		thunks = append(thunks, func() error {
			if e.obsolete {
				return nil
			}
			return e.handler(v)
		})
	}
	c.rt.dispatch(g, thunks)
}
