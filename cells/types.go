package cells

import "github.com/cespare/xxhash/v2"

// CellType is the lifecycle state of a cell. The Static < Dynamic <
// InvalidPending ordering matters: inherited cells reduce the types of
// everything they read with max, so a single invalid input poisons the
// whole combinator.
type CellType int

const (
	// Static cells are frozen forever. Terminal state, rejects all mutation.
	Static CellType = iota
	// Dynamic is the default: a mutable constant or a live derived cell.
	Dynamic
	// InvalidPending cells read as the Invalid sentinel and, unless they
	// inherit their type, stay suspended until retyped.
	InvalidPending
	// Inherit marks a cell whose effective type is recomputed from its
	// inputs on every pass. Never assignable from outside.
	Inherit
)

func (t CellType) String() string {
	switch t {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case InvalidPending:
		return "invalid-pending"
	case Inherit:
		return "inherit"
	default:
		return "unknown"
	}
}

func maxType(a, b CellType) CellType {
	if b > a {
		return b
	}
	return a
}

type invalid struct{}

func (invalid) String() string { return "<invalid>" }

// Invalid is the sentinel returned by value reads on InvalidPending cells
// and by accessors that dereference a missing member.
var Invalid any = invalid{}

// Expr is a cell's recomputable expression. Reading other cells inside it
// registers dependencies automatically.
type Expr func() (any, error)

// Filter post-processes a computed or assigned value before it is stored.
type Filter func(value any) (any, error)

// Handler is a listener callback. Errors are routed to the runtime's
// error callback during cascades.
type Handler func(value any) error

// Group names a listener group. Groups are xxhash symbols so the dispatch
// queues can be keyed by a cheap comparable id.
type Group int64

func symbol(name string) Group {
	return Group(xxhash.Sum64String(name) & 0x7fffffffffffffff)
}

var (
	GroupPreUpdate  = symbol("pre-update")
	GroupUpdate     = symbol("update")
	GroupPostUpdate = symbol("post-update")
	GroupTypeChange = symbol("type-change")

	groupFilter = symbol("filter")
)
