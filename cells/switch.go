package cells

import "reflect"

type caseClause struct {
	match any
	then  any
}

// Switch is the equality-keyed sibling of Conditional: the parent value is
// matched against each case's resolved match operand in order, falling back
// to the default operand. Match and result operands may be cells.
type Switch struct {
	parent *Cell
	cell   *Cell
	cases  []caseClause
	defVal any
}

// Switch starts a case chain off this cell.
func (c *Cell) Switch() *Switch {
	s := &Switch{parent: c}
	s.cell = newInherited(c.rt, s.eval)
	return s
}

func (s *Switch) eval() (any, error) {
	v := s.parent.Value()
	for _, cs := range s.cases {
		if reflect.DeepEqual(v, resolve(cs.match)) {
			return resolve(cs.then), nil
		}
	}
	return resolve(s.defVal), nil
}

// Case appends a match clause. Extending a frozen switch rebuilds a fresh
// combinator carrying the existing cases, same as Conditional.
func (s *Switch) Case(match, then any) *Switch {
	cs := caseClause{match, then}
	return s.extend(&cs, nil, false)
}

// Default sets the fallback operand.
func (s *Switch) Default(then any) *Switch {
	return s.extend(nil, then, true)
}

// Cell exposes the underlying combinator cell.
func (s *Switch) Cell() *Cell { return s.cell }

// Value reads the combinator cell.
func (s *Switch) Value() any { return s.cell.Value() }

func (s *Switch) extend(cs *caseClause, defVal any, hasDefault bool) *Switch {
	if s.cell.ctype == Static {
		next := &Switch{
			parent: s.parent,
			cases:  append([]caseClause{}, s.cases...),
			defVal: s.defVal,
		}
		if cs != nil {
			next.cases = append(next.cases, *cs)
		}
		if hasDefault {
			next.defVal = defVal
		}
		next.cell = newInherited(s.parent.rt, next.eval)
		return next
	}
	if cs != nil {
		s.cases = append(s.cases, *cs)
	}
	if hasDefault {
		s.defVal = defVal
	}
	if err := s.cell.update(false); err != nil {
		s.cell.rt.fail(s.cell, err)
	}
	return s
}
