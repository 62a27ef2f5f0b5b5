// Package journal provides an undo log that gives a sequence of state
// mutations all-or-nothing semantics. It follows the Snapshot and
// RevertToSnapshot shape of an EVM state database.
package journal

import "fmt"

// Journal records one undo closure per mutation. It is not safe for
// concurrent use; callers serialize access.
type Journal struct {
	undo     []func()
	hooks    []hook
	depth    int
	revision int
	valid    []revision
}

type revision struct {
	id    int
	index int
	hooks int
}

type hook struct {
	fn func()
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Record appends an undo closure. The closure must restore exactly the state
// that existed before the mutation it describes. With no open snapshot the
// mutation is final and nothing is kept.
func (j *Journal) Record(undo func()) {
	if j == nil || undo == nil || len(j.valid) == 0 && j.depth == 0 {
		return
	}
	j.undo = append(j.undo, undo)
}

// Snapshot returns an identifier for the current state.
func (j *Journal) Snapshot() int {
	id := j.revision
	j.revision++
	j.valid = append(j.valid, revision{id: id, index: len(j.undo), hooks: len(j.hooks)})
	return id
}

// RevertToSnapshot undoes every mutation recorded after the snapshot, newest
// first, and drops commit hooks registered since.
func (j *Journal) RevertToSnapshot(id int) {
	idx := -1
	for i := len(j.valid) - 1; i >= 0; i-- {
		if j.valid[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Errorf("journal: revision id %d cannot be reverted", id))
	}
	rev := j.valid[idx]
	for i := len(j.undo) - 1; i >= rev.index; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:rev.index]
	j.hooks = j.hooks[:rev.hooks]
	j.valid = j.valid[:idx]
}

// OnCommit registers fn to run once the outermost Atomic call succeeds.
// Outside of Atomic, fn runs immediately.
func (j *Journal) OnCommit(fn func()) {
	if fn == nil {
		return
	}
	if j.depth == 0 {
		fn()
		return
	}
	j.hooks = append(j.hooks, hook{fn: fn})
}

// Depth reports how many Atomic calls are currently open.
func (j *Journal) Depth() int {
	return j.depth
}

// Atomic runs fn as one unit. When fn returns an error or panics, every
// mutation it recorded is undone; a panic is re-raised after the revert.
// Nested calls revert only their own portion. The undo log is discarded and
// commit hooks fire when the outermost call succeeds.
func (j *Journal) Atomic(fn func() error) (err error) {
	snap := j.Snapshot()
	j.depth++
	committed := false
	defer func() {
		j.depth--
		if !committed {
			j.RevertToSnapshot(snap)
			if r := recover(); r != nil {
				panic(r)
			}
			return
		}
		if j.depth == 0 {
			j.flush()
		}
	}()

	if err = fn(); err != nil {
		return err
	}
	committed = true
	j.release(snap)
	return nil
}

// release forgets a successful snapshot while keeping its undo entries, so an
// enclosing Atomic can still revert them.
func (j *Journal) release(id int) {
	for i := len(j.valid) - 1; i >= 0; i-- {
		if j.valid[i].id == id {
			j.valid = j.valid[:i]
			return
		}
	}
}

func (j *Journal) flush() {
	hooks := j.hooks
	if len(j.valid) == 0 {
		j.undo = j.undo[:0]
	}
	j.hooks = nil
	for _, h := range hooks {
		h.fn()
	}
}
