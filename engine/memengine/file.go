package memengine

import (
	"fmt"

	"github.com/google/btree"

	"github.com/maozostr/ember/engine"
)

// memFile is an open handle to one named file.
type memFile struct {
	env  *memEnv
	name string
	data *memData
}

// Enforce memFile implements the engine.File interface.
var _ engine.File = (*memFile)(nil)

// bindTxn resolves the optional caller transaction, lazily binding it to
// this file on first use, and returns the tree operations should run
// against.
func (f *memFile) bindTxn(txn engine.Txn) (*btree.BTreeG[*item], error) {
	mt, ok := txn.(*memTxn)
	if !ok {
		return nil, engine.MakeError(engine.ErrInvalid,
			"transaction was not created by this engine", nil)
	}
	return mt.bind(f.data, f.name)
}

// readTree returns the tree reads should run against: the transaction's
// working clone when one is given, the file's published tree otherwise.
func (f *memFile) readTree(txn engine.Txn) (*btree.BTreeG[*item], error) {
	if txn == nil {
		return f.data.snapshot(), nil
	}
	return f.bindTxn(txn)
}

// Name returns the file name the handle was opened with.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Name() string {
	return f.name
}

// Get retrieves the value stored under key.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Get(txn engine.Txn, key []byte) ([]byte, error) {
	tree, err := f.readTree(txn)
	if err != nil {
		return nil, err
	}

	it, ok := tree.Get(&item{key: key})
	if !ok {
		str := fmt.Sprintf("key %x does not exist", key)
		return nil, engine.MakeError(engine.ErrKeyNotFound, str, nil)
	}
	return dup(it.value), nil
}

// Put stores value under key, honoring the overwrite flag.  Without a
// caller transaction the write is applied to a clone which is published
// atomically, so concurrent readers never observe a partial mutation.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Put(txn engine.Txn, key, value []byte, overwrite bool) error {
	it := &item{key: dup(key), value: dup(value)}

	if txn != nil {
		tree, err := f.bindTxn(txn)
		if err != nil {
			return err
		}
		if !overwrite && tree.Has(it) {
			str := fmt.Sprintf("key %x already exists", key)
			return engine.MakeError(engine.ErrKeyExists, str, nil)
		}
		tree.ReplaceOrInsert(it)
		return nil
	}

	f.data.wmtx.Lock()
	defer f.data.wmtx.Unlock()

	tree := f.data.snapshot()
	if !overwrite && tree.Has(it) {
		str := fmt.Sprintf("key %x already exists", key)
		return engine.MakeError(engine.ErrKeyExists, str, nil)
	}
	clone := tree.Clone()
	clone.ReplaceOrInsert(it)
	f.data.publish(clone)
	return nil
}

// Delete removes the record stored under key.  Missing keys are not an
// error.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Delete(txn engine.Txn, key []byte) error {
	it := &item{key: key}

	if txn != nil {
		tree, err := f.bindTxn(txn)
		if err != nil {
			return err
		}
		tree.Delete(it)
		return nil
	}

	f.data.wmtx.Lock()
	defer f.data.wmtx.Unlock()

	tree := f.data.snapshot()
	if !tree.Has(it) {
		return nil
	}
	clone := tree.Clone()
	clone.Delete(it)
	f.data.publish(clone)
	return nil
}

// Exists reports whether a record is stored under key.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Exists(txn engine.Txn, key []byte) (bool, error) {
	tree, err := f.readTree(txn)
	if err != nil {
		return false, err
	}
	return tree.Has(&item{key: key}), nil
}

// Cursor returns a cursor over the file's records.  Without a caller
// transaction it iterates the snapshot taken at creation; with one it
// iterates the transaction's live view including its uncommitted writes.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Cursor(txn engine.Txn) (engine.Cursor, error) {
	if txn == nil {
		snap := f.data.snapshot()
		return &memCursor{
			resolve: func() (*btree.BTreeG[*item], error) {
				return snap, nil
			},
		}, nil
	}

	// Bind now so a conflicting transaction fails at cursor creation
	// rather than on first read.
	if _, err := f.bindTxn(txn); err != nil {
		return nil, err
	}
	return &memCursor{
		resolve: func() (*btree.BTreeG[*item], error) {
			return f.bindTxn(txn)
		},
	}, nil
}

// Close releases the handle.  Stored data is kept so the file can be
// reopened.
//
// This function is part of the engine.File interface implementation.
func (f *memFile) Close() error {
	f.env.forgetFile(f.name)
	return nil
}
