package cells

// resolve unwraps combinator operands: a *Cell operand is read (registering
// a dependency when inside an evaluation), anything else passes through.
func resolve(x any) any {
	if c, ok := x.(*Cell); ok {
		return c.Value()
	}
	return x
}

// Transform derives an inherited cell computing fn over this cell's value.
func (c *Cell) Transform(fn func(any) any) *Cell {
	return newInherited(c.rt, func() (any, error) {
		return fn(c.Value()), nil
	})
}
