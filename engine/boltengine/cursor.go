package boltengine

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/maozostr/ember/engine"
)

// boltCursor iterates one file's root bucket.  When the cursor was opened
// without a caller transaction, ownTx is the read transaction it holds until
// closed.
type boltCursor struct {
	ownTx   *bolt.Tx
	c       *bolt.Cursor
	started bool
}

// Enforce boltCursor implements the engine.Cursor interface.
var _ engine.Cursor = (*boltCursor)(nil)

// errCursorNotFound is the status returned at end of cursor or when a seek
// target has no matching record.
func errCursorNotFound(op engine.CursorOp) error {
	str := fmt.Sprintf("no record for cursor op %v", op)
	return engine.MakeError(engine.ErrKeyNotFound, str, nil)
}

// Get positions the cursor per op and returns the record found there.
//
// This function is part of the engine.Cursor interface implementation.
func (c *boltCursor) Get(seekKey, seekValue []byte, op engine.CursorOp) ([]byte, []byte, error) {
	var k, v []byte
	switch op {
	case engine.CursorNext:
		if !c.started {
			k, v = c.c.First()
		} else {
			k, v = c.c.Next()
		}

	case engine.CursorSet:
		k, v = c.c.Seek(seekKey)
		if k != nil && !bytes.Equal(k, seekKey) {
			k, v = nil, nil
		}

	case engine.CursorSetRange:
		k, v = c.c.Seek(seekKey)

	case engine.CursorGetBoth:
		// bbolt stores a single value per key, so the exact pair must
		// match.
		k, v = c.c.Seek(seekKey)
		if k != nil && (!bytes.Equal(k, seekKey) ||
			!bytes.Equal(v, seekValue)) {

			k, v = nil, nil
		}

	case engine.CursorGetBothRange:
		k, v = c.c.Seek(seekKey)
		if k != nil && (!bytes.Equal(k, seekKey) ||
			bytes.Compare(v, seekValue) < 0) {

			k, v = nil, nil
		}

	default:
		str := fmt.Sprintf("unknown cursor op %v", op)
		return nil, nil, engine.MakeError(engine.ErrInvalid, str, nil)
	}

	if k == nil {
		return nil, nil, errCursorNotFound(op)
	}
	c.started = true
	return dup(k), dup(v), nil
}

// Close releases the cursor along with the read transaction it holds when it
// was opened without one.
//
// This function is part of the engine.Cursor interface implementation.
func (c *boltCursor) Close() error {
	if c.ownTx != nil {
		if err := c.ownTx.Rollback(); err != nil {
			return engine.MakeError(engine.ErrDriverSpecific,
				"failed to release cursor transaction", err)
		}
		c.ownTx = nil
	}
	return nil
}
