package tree

import "errors"

// DefaultUndoLimit is the number of transactions kept when no limit is given.
const DefaultUndoLimit = 100

// Undo errors
var (
	// ErrNothingToUndo is returned by Undo with an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo with an empty redo history.
	ErrNothingToRedo = errors.New("nothing to redo")
)

type transaction struct {
	name    string
	inverse []Change
}

// UndoManager records the inverse of every performed change, grouped into
// named transactions. Replayed changes are stamped External so listeners
// rebuild their runtime state from the tree.
//
// UndoManager is not safe for concurrent use; like the tree it belongs to
// the edit context.
type UndoManager struct {
	limit     int
	current   *transaction
	pending   string
	undoStack []transaction
	redoStack []transaction
	replaying bool
}

// NewUndoManager returns a manager keeping at most limit transactions.
// A limit <= 0 uses DefaultUndoLimit.
func NewUndoManager(limit int) *UndoManager {
	if limit <= 0 {
		limit = DefaultUndoLimit
	}
	return &UndoManager{limit: limit}
}

// BeginTransaction closes the open transaction and names the next one.
func (u *UndoManager) BeginTransaction(name string) {
	u.commit()
	u.pending = name
}

// Perform applies c and records its inverse in the open transaction.
// Changes performed while an undo or redo is being replayed are applied but
// not recorded.
func (u *UndoManager) Perform(c Change) error {
	inverse, err := Apply(c)
	if err != nil {
		return err
	}
	if u.replaying {
		return nil
	}
	if u.current == nil {
		u.current = &transaction{name: u.pending}
	}
	inverse.Origin = External
	u.current.inverse = append(u.current.inverse, inverse)
	u.redoStack = u.redoStack[:0]
	return nil
}

// CanUndo reports whether there is anything to undo.
func (u *UndoManager) CanUndo() bool {
	return (u.current != nil && len(u.current.inverse) > 0) || len(u.undoStack) > 0
}

// CanRedo reports whether there is anything to redo.
func (u *UndoManager) CanRedo() bool {
	return len(u.redoStack) > 0
}

// UndoName returns the name of the transaction Undo would revert.
func (u *UndoManager) UndoName() string {
	if u.current != nil && len(u.current.inverse) > 0 {
		return u.current.name
	}
	if len(u.undoStack) == 0 {
		return ""
	}
	return u.undoStack[len(u.undoStack)-1].name
}

// Undo reverts the most recent transaction.
func (u *UndoManager) Undo() error {
	u.commit()
	if len(u.undoStack) == 0 {
		return ErrNothingToUndo
	}
	t := u.undoStack[len(u.undoStack)-1]
	u.undoStack = u.undoStack[:len(u.undoStack)-1]

	redo, err := u.replay(t.inverse)
	u.redoStack = append(u.redoStack, transaction{name: t.name, inverse: redo})
	return err
}

// Redo re-applies the most recently undone transaction.
func (u *UndoManager) Redo() error {
	u.commit()
	if len(u.redoStack) == 0 {
		return ErrNothingToRedo
	}
	t := u.redoStack[len(u.redoStack)-1]
	u.redoStack = u.redoStack[:len(u.redoStack)-1]

	undo, err := u.replay(t.inverse)
	u.push(transaction{name: t.name, inverse: undo})
	return err
}

// replay applies changes in reverse order and returns their inverses in the
// order that reverts the replay.
func (u *UndoManager) replay(changes []Change) ([]Change, error) {
	u.replaying = true
	defer func() { u.replaying = false }()

	out := make([]Change, 0, len(changes))
	var firstErr error
	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		c.Origin = External
		inverse, err := Apply(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		inverse.Origin = External
		out = append(out, inverse)
	}
	return out, firstErr
}

func (u *UndoManager) commit() {
	if u.current != nil && len(u.current.inverse) > 0 {
		u.push(*u.current)
	}
	u.current = nil
}

func (u *UndoManager) push(t transaction) {
	u.undoStack = append(u.undoStack, t)
	if over := len(u.undoStack) - u.limit; over > 0 {
		u.undoStack = append(u.undoStack[:0], u.undoStack[over:]...)
	}
}
