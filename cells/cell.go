package cells

import (
	"fmt"
	"reflect"
)

// Cell is a reactive value container. It holds either a constant or a
// recomputable expression; reading a cell inside another cell's expression
// registers an automatic dependency, and value changes propagate to every
// dependent transitively.
//
// A cell's stored value and its expression are mutually exclusive:
// assigning one clears the other.
type Cell struct {
	rt *Runtime

	ctype     CellType
	inherited bool

	// value is the stored, post-filter result; base is the last assigned
	// constant, kept so filters always re-run against the unfiltered source
	value any
	base  any
	expr  Expr

	// gen is the current recomputation generation. Bumping it supersedes
	// every dependency edge recorded against the previous pass.
	gen uint64

	groups map[Group][]*entry
}

// NewCell constructs a Dynamic cell holding a constant value.
func NewCell(rt *Runtime, value any) *Cell {
	return &Cell{rt: rt, ctype: Dynamic, value: value, base: value}
}

// NewDerived constructs a Dynamic cell computed by expr. The expression
// runs once immediately; dependencies it reads are subscribed to.
func NewDerived(rt *Runtime, expr Expr) (*Cell, error) {
	if expr == nil {
		return nil, ErrInvalidExpression
	}
	c := &Cell{rt: rt, ctype: Dynamic, expr: expr}
	if err := c.update(false); err != nil {
		return nil, err
	}
	return c, nil
}

// NewTypedCell constructs a cell holding value with an explicit initial
// lifecycle type. Inherit is computed, never assigned.
func NewTypedCell(rt *Runtime, value any, t CellType) (*Cell, error) {
	if t == Inherit {
		return nil, ErrInheritAssignment
	}
	return &Cell{rt: rt, ctype: t, value: value, base: value}, nil
}

// NewTypedDerived constructs a derived cell with an explicit initial
// lifecycle type. An InvalidPending cell starts suspended: the expression
// first runs when the cell is retyped out of InvalidPending. Static is
// rejected since a frozen cell cannot hold an expression.
func NewTypedDerived(rt *Runtime, expr Expr, t CellType) (*Cell, error) {
	if expr == nil {
		return nil, ErrInvalidExpression
	}
	if t == Inherit {
		return nil, ErrInheritAssignment
	}
	if t == Static {
		return nil, ErrFrozenMutation
	}
	c := &Cell{rt: rt, ctype: t, expr: expr}
	if t != InvalidPending {
		if err := c.update(false); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// newInherited builds a combinator cell whose effective type is reduced
// from everything its expression reads. Construction errors go to the
// runtime error callback; the cell is still usable afterwards.
func newInherited(rt *Runtime, expr Expr) *Cell {
	c := &Cell{rt: rt, ctype: Dynamic, inherited: true, expr: expr}
	if err := c.update(false); err != nil {
		rt.fail(c, err)
	}
	return c
}

func (c *Cell) Runtime() *Runtime { return c.rt }

// Type reports the cell's effective lifecycle type. For inherited cells
// this is the max-reduced type from the last recomputation pass.
func (c *Cell) Type() CellType { return c.ctype }

// Inherited reports whether the cell recomputes its type from its inputs.
func (c *Cell) Inherited() bool { return c.inherited }

// Expression returns the cell's expression, or nil for a constant holder.
func (c *Cell) Expression() Expr { return c.expr }

// peek is Value without dependency registration.
func (c *Cell) peek() any {
	if c.ctype == InvalidPending {
		return Invalid
	}
	return c.value
}

// Value returns the cell's current value, or Invalid while the cell is
// InvalidPending. When called inside another cell's evaluation it registers
// that cell as a dependent, keyed to its current generation; when the top
// of the evaluation stack is an inherited cell it also raises that cell's
// pending type.
func (c *Cell) Value() any {
	if f := c.rt.top(); f != nil && f.cell != nil && f.cell != c {
		if f.cell.inherited {
			f.pending = maxType(f.pending, c.ctype)
		}
		if c.ctype != Static && f.seen.Add(c) {
			c.addEntry(GroupUpdate, &entry{consumer: f.cell, gen: f.cell.gen})
		}
	}
	return c.peek()
}

// SetValue assigns a constant, clearing any expression, and propagates to
// dependents if the stored value changes.
func (c *Cell) SetValue(v any) error {
	if c.ctype == Static {
		return ErrFrozenMutation
	}
	c.expr = nil
	c.base = v
	return c.update(false)
}

// SetExpr assigns a recomputable expression, clearing any constant, and
// recomputes immediately.
func (c *Cell) SetExpr(expr Expr) error {
	if c.ctype == Static {
		return ErrFrozenMutation
	}
	if expr == nil {
		return ErrInvalidExpression
	}
	c.expr = expr
	c.base = nil
	return c.update(false)
}

// SetType transitions the cell's lifecycle type. Entering Static releases
// listeners, filters and the expression irrevocably; leaving InvalidPending
// forces a recomputation so dependents see the revived value.
func (c *Cell) SetType(t CellType) error {
	if c.ctype == Static {
		return ErrFrozenMutation
	}
	if t == Inherit {
		return ErrInheritAssignment
	}
	prev := c.ctype
	if t == prev {
		return nil
	}
	c.ctype = t
	c.dispatchGroup(GroupTypeChange, t)
	if t == Static {
		c.compact()
		return nil
	}
	if prev == InvalidPending {
		return c.update(true)
	}
	return nil
}

// Finalize assigns a terminal value and flips the cell to Static. Update
// listeners fire one last time if the value changed, then every listener
// group, filter and expression is released.
func (c *Cell) Finalize(v any) error {
	if c.ctype == Static {
		return ErrFrozenMutation
	}
	c.expr = nil
	c.base = v
	// the recomputation suspension must not swallow the terminal value
	if c.ctype == InvalidPending {
		c.ctype = Dynamic
	}
	err := c.update(false)
	c.ctype = Static
	c.dispatchGroup(GroupTypeChange, Static)
	c.compact()
	return err
}

// RunImmune executes fn with dependency tracking suspended. Callable only
// from inside this cell's own expression evaluation; anywhere else the
// evaluation stack would be corrupted, so the call fails with
// ErrProtocolViolation.
func (c *Cell) RunImmune(fn func() (any, error)) (any, error) {
	f := c.rt.top()
	if f == nil || f.cell != c {
		return nil, fmt.Errorf("cell %p: %w", c, ErrProtocolViolation)
	}
	c.rt.push(nil)
	defer c.rt.pop()
	return fn()
}

// Update recomputes the cell. With force false, listeners fire only when
// the stored value actually changes; with force true they fire
// unconditionally.
func (c *Cell) Update(force bool) error {
	return c.update(force)
}

func (c *Cell) update(force bool) error {
	// plain InvalidPending cells are suspended until retyped; inherited
	// ones must keep recomputing so they can recover when inputs revive
	if c.ctype == InvalidPending && !c.inherited {
		return nil
	}

	old := c.peek()
	filters := c.live(groupFilter)

	var candidate any
	pending := Static
	if c.expr != nil || len(filters) > 0 {
		c.gen++
		var err error
		candidate, pending, err = c.evaluate(filters)
		if err != nil {
			return err
		}
	} else {
		candidate = c.base
	}

	if c.inherited {
		c.adoptType(pending)
	}

	if force || !reflect.DeepEqual(candidate, c.value) {
		c.fire(GroupPreUpdate, old)
		c.value = candidate
		c.dispatchGroup(GroupUpdate, c.peek())
		c.fire(GroupPostUpdate, c.peek())
	}

	if c.ctype == Static {
		c.compact()
	}
	return nil
}

// evaluate runs the expression and filter chain inside a fresh evaluation
// frame. The frame outlives the pop so the caller can read the accumulated
// pending type.
func (c *Cell) evaluate(filters []*entry) (any, CellType, error) {
	f := c.rt.push(c)
	defer c.rt.pop()

	v := c.base
	if c.expr != nil {
		var err error
		v, err = c.expr()
		if err != nil {
			return nil, f.pending, fmt.Errorf("expression: %w", err)
		}
	}
	for _, e := range filters {
		if e.obsolete {
			continue
		}
		var err error
		v, err = e.filter(v)
		if err != nil {
			return nil, f.pending, fmt.Errorf("filter: %w", err)
		}
	}
	return v, f.pending, nil
}

func (c *Cell) adoptType(t CellType) {
	if c.ctype == t {
		return
	}
	c.ctype = t
	c.dispatchGroup(GroupTypeChange, t)
}

// compact is the terminal cleanup on reaching Static: no recomputation can
// ever happen again, so listener groups, filters and the expression are
// dropped and dead producers stop pinning this cell.
func (c *Cell) compact() {
	c.groups = nil
	c.expr = nil
	c.base = nil
}
