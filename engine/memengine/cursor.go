package memengine

import (
	"bytes"
	"fmt"

	"github.com/google/btree"

	"github.com/maozostr/ember/engine"
)

// memCursor iterates one file's records.  It keeps only the key it is
// positioned at and re-seeks on every advance, so it stays valid while the
// underlying transaction keeps writing.
type memCursor struct {
	resolve func() (*btree.BTreeG[*item], error)
	cur     []byte
	started bool
}

// Enforce memCursor implements the engine.Cursor interface.
var _ engine.Cursor = (*memCursor)(nil)

// Get positions the cursor per op and returns the record found there.
//
// This function is part of the engine.Cursor interface implementation.
func (c *memCursor) Get(seekKey, seekValue []byte, op engine.CursorOp) ([]byte, []byte, error) {
	tree, err := c.resolve()
	if err != nil {
		return nil, nil, err
	}

	var found *item
	switch op {
	case engine.CursorNext:
		if !c.started {
			tree.Ascend(func(it *item) bool {
				found = it
				return false
			})
		} else {
			tree.AscendGreaterOrEqual(&item{key: c.cur},
				func(it *item) bool {
					if bytes.Equal(it.key, c.cur) {
						return true
					}
					found = it
					return false
				})
		}

	case engine.CursorSet:
		if it, ok := tree.Get(&item{key: seekKey}); ok {
			found = it
		}

	case engine.CursorSetRange:
		tree.AscendGreaterOrEqual(&item{key: seekKey},
			func(it *item) bool {
				found = it
				return false
			})

	case engine.CursorGetBoth:
		// A single value is stored per key, so the exact pair must
		// match.
		if it, ok := tree.Get(&item{key: seekKey}); ok &&
			bytes.Equal(it.value, seekValue) {

			found = it
		}

	case engine.CursorGetBothRange:
		if it, ok := tree.Get(&item{key: seekKey}); ok &&
			bytes.Compare(it.value, seekValue) >= 0 {

			found = it
		}

	default:
		str := fmt.Sprintf("unknown cursor op %v", op)
		return nil, nil, engine.MakeError(engine.ErrInvalid, str, nil)
	}

	if found == nil {
		str := fmt.Sprintf("no record for cursor op %v", op)
		return nil, nil, engine.MakeError(engine.ErrKeyNotFound, str,
			nil)
	}
	c.started = true
	c.cur = found.key
	return dup(found.key), dup(found.value), nil
}

// Close releases the cursor.
//
// This function is part of the engine.Cursor interface implementation.
func (c *memCursor) Close() error {
	return nil
}
