package cells

// Predicate tests a parent cell's value for a conditional clause.
type Predicate func(value any) bool

type clause struct {
	pred Predicate
	then any
}

// Conditional is a derived cell evaluating an ordered clause list against a
// parent cell's value. The first clause whose predicate matches wins; with
// no match the else operand (default nil) is used. Clause operands may be
// cells, read lazily so only the taken branch becomes a dependency.
type Conditional struct {
	parent  *Cell
	cell    *Cell
	clauses []clause
	elseVal any
}

// If starts a conditional chain off this cell.
func (c *Cell) If(pred Predicate, then any) *Conditional {
	q := &Conditional{parent: c, clauses: []clause{{pred, then}}}
	q.cell = newInherited(c.rt, q.eval)
	return q
}

// IfNot starts a conditional chain with a negated predicate.
func (c *Cell) IfNot(pred Predicate, then any) *Conditional {
	return c.If(negate(pred), then)
}

func negate(pred Predicate) Predicate {
	return func(v any) bool { return !pred(v) }
}

func (q *Conditional) eval() (any, error) {
	v := q.parent.Value()
	for _, cl := range q.clauses {
		if cl.pred(v) {
			return resolve(cl.then), nil
		}
	}
	return resolve(q.elseVal), nil
}

// If appends another clause. If the combinator cell has been frozen the
// chain cannot be mutated anymore; a fresh combinator carrying the existing
// clauses plus the new one is built instead, and only holders of the
// returned Conditional see the extended behavior.
func (q *Conditional) If(pred Predicate, then any) *Conditional {
	cl := clause{pred, then}
	return q.extend(&cl, nil, false)
}

// IfNot appends a negated clause.
func (q *Conditional) IfNot(pred Predicate, then any) *Conditional {
	cl := clause{negate(pred), then}
	return q.extend(&cl, nil, false)
}

// Else sets the fallback operand.
func (q *Conditional) Else(then any) *Conditional {
	return q.extend(nil, then, true)
}

// Cell exposes the underlying combinator cell.
func (q *Conditional) Cell() *Cell { return q.cell }

// Value reads the combinator cell.
func (q *Conditional) Value() any { return q.cell.Value() }

func (q *Conditional) extend(cl *clause, elseVal any, hasElse bool) *Conditional {
	if q.cell.ctype == Static {
		next := &Conditional{
			parent:  q.parent,
			clauses: append([]clause{}, q.clauses...),
			elseVal: q.elseVal,
		}
		if cl != nil {
			next.clauses = append(next.clauses, *cl)
		}
		if hasElse {
			next.elseVal = elseVal
		}
		next.cell = newInherited(q.parent.rt, next.eval)
		return next
	}
	if cl != nil {
		q.clauses = append(q.clauses, *cl)
	}
	if hasElse {
		q.elseVal = elseVal
	}
	if err := q.cell.update(false); err != nil {
		q.cell.rt.fail(q.cell, err)
	}
	return q
}
