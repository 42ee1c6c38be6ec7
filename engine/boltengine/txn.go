package boltengine

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/maozostr/ember/engine"
)

// boltTxn is a transaction begun at the environment.  bbolt transactions
// belong to a single database, so the underlying transaction starts lazily
// when the first file operation binds it.  A transaction that commits or
// aborts before touching any file finalizes trivially.
type boltTxn struct {
	flags engine.TxnFlags
	file  *boltFile
	tx    *bolt.Tx
	done  bool
}

// Enforce boltTxn implements the engine.Txn interface.
var _ engine.Txn = (*boltTxn)(nil)

// bind attaches the transaction to the given file on first use and returns
// the underlying bbolt transaction.  Binding blocks while another write
// transaction is open on the same file.
func (t *boltTxn) bind(f *boltFile) (*bolt.Tx, error) {
	if t.done {
		return nil, engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	if t.tx == nil {
		tx, err := f.db.Begin(true)
		if err != nil {
			return nil, engine.MakeError(engine.ErrDriverSpecific,
				"failed to begin transaction", err)
		}
		t.tx = tx
		t.file = f
		return tx, nil
	}
	if t.file != f {
		str := fmt.Sprintf("transaction is bound to file %q, not %q",
			t.file.name, f.name)
		return nil, engine.MakeError(engine.ErrTxConflict, str, nil)
	}
	return t.tx, nil
}

// Commit makes the transaction's writes durable per its flags.
//
// This function is part of the engine.Txn interface implementation.
func (t *boltTxn) Commit() error {
	if t.done {
		return engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	t.done = true
	if t.tx == nil {
		return nil
	}

	if err := t.tx.Commit(); err != nil {
		return engine.MakeError(engine.ErrDriverSpecific,
			"commit failed", err)
	}
	if t.flags&engine.TxnSync != 0 {
		if err := t.file.db.Sync(); err != nil {
			return engine.MakeError(engine.ErrDriverSpecific,
				"sync after commit failed", err)
		}
	}
	return nil
}

// Abort rolls back the transaction's writes.
//
// This function is part of the engine.Txn interface implementation.
func (t *boltTxn) Abort() error {
	if t.done {
		return engine.MakeError(engine.ErrTxClosed,
			"transaction has already been finalized", nil)
	}
	t.done = true
	if t.tx == nil {
		return nil
	}

	if err := t.tx.Rollback(); err != nil {
		return engine.MakeError(engine.ErrDriverSpecific,
			"rollback failed", err)
	}
	return nil
}
