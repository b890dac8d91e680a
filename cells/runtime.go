package cells

import (
	"log"

	mapset "github.com/deckarep/golang-set/v2"
)

// OnErrorFunc receives errors raised by listeners and dependent
// recomputations while a cascade is draining. The originating cell is nil
// when the error came from a plain listener rather than a dependent cell.
type OnErrorFunc func(from *Cell, err error)

// frame is one entry of the evaluation context stack. A nil cell marks an
// immune region: reads inside it register no subscriptions.
type frame struct {
	cell *Cell
	// producers already subscribed during this pass, so re-reading the
	// same cell inside one expression stays a single edge
	seen mapset.Set[*Cell]
	// max-reduction accumulator for inherited cells, identity Static
	pending CellType
}

type dispatchQueue struct {
	thunks   []func() error
	draining bool
}

// Runtime owns the evaluation context stack and the per-group dispatch
// queues. Every cell belongs to exactly one Runtime; independent graphs get
// independent runtimes so tests and sessions never cross-talk. A Runtime is
// single-threaded: all mutation of its cells must come from one goroutine
// at a time.
type Runtime struct {
	stack   []*frame
	queues  map[Group]*dispatchQueue
	onError OnErrorFunc
}

func NewRuntime(onError OnErrorFunc) *Runtime {
	return &Runtime{
		queues:  map[Group]*dispatchQueue{},
		onError: onError,
	}
}

func (rt *Runtime) push(c *Cell) *frame {
	f := &frame{cell: c, pending: Static}
	if c != nil {
		f.seen = mapset.NewThreadUnsafeSet[*Cell]()
	}
	rt.stack = append(rt.stack, f)
	return f
}

func (rt *Runtime) pop() {
	rt.stack = rt.stack[:len(rt.stack)-1]
}

func (rt *Runtime) top() *frame {
	if len(rt.stack) == 0 {
		return nil
	}
	return rt.stack[len(rt.stack)-1]
}

// dispatch feeds thunks into the group's shared queue. The first caller for
// a group becomes the driver and drains FIFO until empty; calls arriving
// from inside a draining cascade only enqueue. This flattens what would be
// recursive listener invocation into breadth-first iteration, so a chain of
// N dependents costs constant stack depth instead of N nested calls.
func (rt *Runtime) dispatch(g Group, thunks []func() error) {
	if len(thunks) == 0 {
		return
	}
	q, ok := rt.queues[g]
	if !ok {
		q = &dispatchQueue{}
		rt.queues[g] = q
	}
	q.thunks = append(q.thunks, thunks...)
	if q.draining {
		return
	}
	q.draining = true
	for len(q.thunks) > 0 {
		thunk := q.thunks[0]
		q.thunks = q.thunks[1:]
		if err := thunk(); err != nil {
			rt.fail(nil, err)
		}
	}
	q.draining = false
}

func (rt *Runtime) fail(from *Cell, err error) {
	if rt.onError != nil {
		rt.onError(from, err)
		return
	}
	log.Printf("cells: %v", err)
}
