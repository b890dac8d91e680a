package cells_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/cellparty/cells"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *cells.Runtime {
	return cells.NewRuntime(func(from *cells.Cell, err error) {
		assert.FailNow(t, err.Error())
	})
}

// should keep value and expression mutually exclusive
func TestValueExpressionExclusivity(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 1)

	require.NoError(t, c.SetExpr(func() (any, error) { return 42, nil }))
	assert.NotNil(t, c.Expression())
	assert.Equal(t, 42, c.Value())

	require.NoError(t, c.SetValue(7))
	assert.Nil(t, c.Expression())
	assert.Equal(t, 7, c.Value())
}

// should reject a nil expression
func TestNilExpressionRejected(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 1)
	assert.ErrorIs(t, c.SetExpr(nil), cells.ErrInvalidExpression)

	_, err := cells.NewDerived(rt, nil)
	assert.ErrorIs(t, err, cells.ErrInvalidExpression)
}

// should not fire listeners on an unchanged value unless forced
func TestForceSemantics(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 5)

	pre, upd, post := 0, 0, 0
	_, err := c.Subscribe(cells.GroupPreUpdate, func(any) error { pre++; return nil })
	require.NoError(t, err)
	_, err = c.Subscribe(cells.GroupUpdate, func(any) error { upd++; return nil })
	require.NoError(t, err)
	_, err = c.Subscribe(cells.GroupPostUpdate, func(any) error { post++; return nil })
	require.NoError(t, err)

	require.NoError(t, c.Update(false))
	require.NoError(t, c.SetValue(5))
	assert.Equal(t, 0, pre)
	assert.Equal(t, 0, upd)
	assert.Equal(t, 0, post)

	require.NoError(t, c.Update(true))
	assert.Equal(t, 1, pre)
	assert.Equal(t, 1, upd)
	assert.Equal(t, 1, post)

	require.NoError(t, c.SetValue(6))
	assert.Equal(t, 2, pre)
	assert.Equal(t, 2, upd)
	assert.Equal(t, 2, post)
}

// should freeze a cell forever once finalized
func TestFinalizeTerminality(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 1)

	require.NoError(t, c.Finalize(42))
	assert.Equal(t, cells.Static, c.Type())
	assert.Equal(t, 42, c.Value())

	assert.ErrorIs(t, c.SetValue(1), cells.ErrFrozenMutation)
	assert.ErrorIs(t, c.SetExpr(func() (any, error) { return 0, nil }), cells.ErrFrozenMutation)
	assert.ErrorIs(t, c.SetType(cells.Dynamic), cells.ErrFrozenMutation)
	assert.ErrorIs(t, c.Finalize(43), cells.ErrFrozenMutation)

	_, err := c.AttachFilter(func(v any) (any, error) { return v, nil })
	assert.ErrorIs(t, err, cells.ErrFrozenMutation)
	_, err = c.Subscribe(cells.GroupUpdate, func(any) error { return nil })
	assert.ErrorIs(t, err, cells.ErrFrozenMutation)

	assert.Equal(t, 42, c.Value())
}

// should fire update listeners one last time when finalizing changes the value
func TestFinalizeFiresFinalUpdate(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 1)

	var got any
	_, err := c.Subscribe(cells.GroupUpdate, func(v any) error { got = v; return nil })
	require.NoError(t, err)

	require.NoError(t, c.Finalize(99))
	assert.Equal(t, 99, got)
}

// should take the terminal value even when finalizing a suspended cell
func TestFinalizeFromInvalidPending(t *testing.T) {
	rt := newTestRuntime(t)
	c, err := cells.NewTypedCell(rt, 5, cells.InvalidPending)
	require.NoError(t, err)
	assert.Equal(t, cells.Invalid, c.Value())

	require.NoError(t, c.Finalize(9))
	assert.Equal(t, cells.Static, c.Type())
	assert.Equal(t, 9, c.Value())
	assert.ErrorIs(t, c.SetValue(1), cells.ErrFrozenMutation)
}

// should construct derived cells with an explicit initial type
func TestTypedDerivedConstruction(t *testing.T) {
	rt := newTestRuntime(t)
	src := cells.NewCell(rt, 3)
	expr := func() (any, error) { return src.Value().(int) * 2, nil }

	d, err := cells.NewTypedDerived(rt, expr, cells.Dynamic)
	require.NoError(t, err)
	assert.Equal(t, 6, d.Value())

	// an invalid-pending derived cell stays suspended until retyped
	p, err := cells.NewTypedDerived(rt, expr, cells.InvalidPending)
	require.NoError(t, err)
	assert.Equal(t, cells.Invalid, p.Value())
	require.NoError(t, p.SetType(cells.Dynamic))
	assert.Equal(t, 6, p.Value())

	_, err = cells.NewTypedDerived(rt, expr, cells.Inherit)
	assert.ErrorIs(t, err, cells.ErrInheritAssignment)
	_, err = cells.NewTypedDerived(rt, expr, cells.Static)
	assert.ErrorIs(t, err, cells.ErrFrozenMutation)
	_, err = cells.NewTypedDerived(rt, nil, cells.Dynamic)
	assert.ErrorIs(t, err, cells.ErrInvalidExpression)
}

// should never allow assigning the inherit type directly
func TestInheritTypeNotAssignable(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := cells.NewTypedCell(rt, 1, cells.Inherit)
	assert.ErrorIs(t, err, cells.ErrInheritAssignment)

	c := cells.NewCell(rt, 1)
	assert.ErrorIs(t, c.SetType(cells.Inherit), cells.ErrInheritAssignment)
}

// should read invalid-pending cells as the invalid sentinel
func TestInvalidPendingReadsAsInvalid(t *testing.T) {
	rt := newTestRuntime(t)
	c, err := cells.NewTypedCell(rt, 5, cells.InvalidPending)
	require.NoError(t, err)
	assert.Equal(t, cells.Invalid, c.Value())

	require.NoError(t, c.SetType(cells.Dynamic))
	assert.Equal(t, 5, c.Value())
}

// should suspend recomputation while invalid-pending and recover on retype
func TestInvalidPendingSuspendsRecomputation(t *testing.T) {
	rt := newTestRuntime(t)
	src := cells.NewCell(rt, 1)
	d, err := cells.NewDerived(rt, func() (any, error) {
		return src.Value().(int) * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, d.Value())

	require.NoError(t, d.SetType(cells.InvalidPending))
	require.NoError(t, src.SetValue(2))
	assert.Equal(t, cells.Invalid, d.Value())

	require.NoError(t, d.SetType(cells.Dynamic))
	assert.Equal(t, 20, d.Value())
}

// should propagate invalidity through inherited combinators and recover
func TestInvalidPropagation(t *testing.T) {
	rt := newTestRuntime(t)
	src, err := cells.NewTypedCell(rt, 5, cells.InvalidPending)
	require.NoError(t, err)

	comb := src.Transform(func(v any) any {
		if v == cells.Invalid {
			return v
		}
		return v.(int) * 2
	})
	assert.Equal(t, cells.InvalidPending, comb.Type())
	assert.Equal(t, cells.Invalid, comb.Value())

	require.NoError(t, src.SetType(cells.Dynamic))
	assert.Equal(t, cells.Dynamic, comb.Type())
	assert.Equal(t, 10, comb.Value())
}

// should notify type-change listeners with the new type
func TestTypeChangeListeners(t *testing.T) {
	rt := newTestRuntime(t)
	c := cells.NewCell(rt, 1)

	var seen []cells.CellType
	_, err := c.Subscribe(cells.GroupTypeChange, func(v any) error {
		seen = append(seen, v.(cells.CellType))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.SetType(cells.InvalidPending))
	require.NoError(t, c.SetType(cells.Dynamic))
	assert.Equal(t, []cells.CellType{cells.InvalidPending, cells.Dynamic}, seen)
}

// should leave the stored value untouched when an expression fails
func TestExpressionErrorKeepsOldValue(t *testing.T) {
	rt := newTestRuntime(t)
	boom := errors.New("boom")

	c := cells.NewCell(rt, 0)
	fail := false
	require.NoError(t, c.SetExpr(func() (any, error) {
		if fail {
			return nil, boom
		}
		return 1, nil
	}))
	assert.Equal(t, 1, c.Value())

	fail = true
	err := c.Update(true)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Value())
}
