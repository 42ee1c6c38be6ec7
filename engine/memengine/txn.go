package memengine

import (
	"fmt"

	"github.com/google/btree"

	"github.com/maozostr/ember/engine"
)

// memTxn is a transaction begun at the environment.  It binds lazily to the
// first file it is used against, taking the file's writer lock and a
// copy-on-write clone of its tree.  All operations under the transaction run
// against the clone; commit publishes it, abort discards it.
type memTxn struct {
	flags engine.TxnFlags
	data  *memData
	name  string
	tree  *btree.BTreeG[*item]
	done  bool
}

// Enforce memTxn implements the engine.Txn interface.
var _ engine.Txn = (*memTxn)(nil)

// bind attaches the transaction to the given file's data on first use and
// returns its working clone.  Binding blocks while another transaction holds
// the file's writer lock.
func (t *memTxn) bind(data *memData, name string) (*btree.BTreeG[*item], error) {
	if t.done {
		return nil, engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	if t.tree == nil {
		data.wmtx.Lock()
		t.data = data
		t.name = name
		t.tree = data.snapshot().Clone()
		return t.tree, nil
	}
	if t.data != data {
		str := fmt.Sprintf("transaction is bound to file %q, not %q",
			t.name, name)
		return nil, engine.MakeError(engine.ErrTxConflict, str, nil)
	}
	return t.tree, nil
}

// Commit publishes the transaction's working clone as the file's contents
// and releases the writer lock.
//
// This function is part of the engine.Txn interface implementation.
func (t *memTxn) Commit() error {
	if t.done {
		return engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	t.done = true
	if t.tree == nil {
		return nil
	}

	t.data.publish(t.tree)
	t.data.wmtx.Unlock()
	return nil
}

// Abort discards the transaction's working clone and releases the writer
// lock.
//
// This function is part of the engine.Txn interface implementation.
func (t *memTxn) Abort() error {
	if t.done {
		return engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	t.done = true
	if t.tree == nil {
		return nil
	}

	t.data.wmtx.Unlock()
	return nil
}
