package boltengine

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/maozostr/ember/engine"
)

// boltFile is an open handle to one database file within the environment.
type boltFile struct {
	env  *boltEnv
	name string
	db   *bolt.DB
}

// Enforce boltFile implements the engine.File interface.
var _ engine.File = (*boltFile)(nil)

// dup returns a caller-owned copy of b.  Slices handed out by bbolt are only
// valid for the life of the transaction that produced them.
func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// bindTxn resolves the optional caller transaction to the bbolt transaction
// backing it, lazily binding it to this file on first use.
func (f *boltFile) bindTxn(txn engine.Txn) (*bolt.Tx, error) {
	bt, ok := txn.(*boltTxn)
	if !ok {
		return nil, engine.MakeError(engine.ErrInvalid,
			"transaction was not created by this engine", nil)
	}
	return bt.bind(f)
}

// view runs fn against the file's root bucket.  When txn is nil a managed
// read-only transaction scopes the call; otherwise fn runs inside the
// caller's transaction, which stays open afterwards.
func (f *boltFile) view(txn engine.Txn, fn func(b *bolt.Bucket) error) error {
	if txn == nil {
		return f.db.View(func(tx *bolt.Tx) error {
			return fn(tx.Bucket(recordsBucketName))
		})
	}

	tx, err := f.bindTxn(txn)
	if err != nil {
		return err
	}
	return fn(tx.Bucket(recordsBucketName))
}

// update is the read-write counterpart of view.
func (f *boltFile) update(txn engine.Txn, fn func(b *bolt.Bucket) error) error {
	if txn == nil {
		return f.db.Update(func(tx *bolt.Tx) error {
			return fn(tx.Bucket(recordsBucketName))
		})
	}

	tx, err := f.bindTxn(txn)
	if err != nil {
		return err
	}
	return fn(tx.Bucket(recordsBucketName))
}

// Name returns the file name the handle was opened with.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Name() string {
	return f.name
}

// Get retrieves the value stored under key.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Get(txn engine.Txn, key []byte) ([]byte, error) {
	var value []byte
	err := f.view(txn, func(b *bolt.Bucket) error {
		v := b.Get(key)
		if v == nil {
			str := fmt.Sprintf("key %x does not exist", key)
			return engine.MakeError(engine.ErrKeyNotFound, str, nil)
		}
		value = dup(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value under key, honoring the overwrite flag.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Put(txn engine.Txn, key, value []byte, overwrite bool) error {
	return f.update(txn, func(b *bolt.Bucket) error {
		if !overwrite && b.Get(key) != nil {
			str := fmt.Sprintf("key %x already exists", key)
			return engine.MakeError(engine.ErrKeyExists, str, nil)
		}

		// bbolt requires put slices to stay valid for the life of the
		// transaction, which may outlive the caller's buffers.
		if err := b.Put(dup(key), dup(value)); err != nil {
			return engine.MakeError(engine.ErrDriverSpecific,
				"put failed", err)
		}
		return nil
	})
}

// Delete removes the record stored under key.  Missing keys are not an
// error.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Delete(txn engine.Txn, key []byte) error {
	return f.update(txn, func(b *bolt.Bucket) error {
		if err := b.Delete(key); err != nil {
			return engine.MakeError(engine.ErrDriverSpecific,
				"delete failed", err)
		}
		return nil
	})
}

// Exists reports whether a record is stored under key.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Exists(txn engine.Txn, key []byte) (bool, error) {
	var exists bool
	err := f.view(txn, func(b *bolt.Bucket) error {
		exists = b.Get(key) != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Cursor returns a cursor over the file's records.  Without a caller
// transaction the cursor holds its own read transaction until closed.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Cursor(txn engine.Txn) (engine.Cursor, error) {
	if txn == nil {
		tx, err := f.db.Begin(false)
		if err != nil {
			return nil, engine.MakeError(engine.ErrDriverSpecific,
				"failed to begin cursor transaction", err)
		}
		return &boltCursor{
			ownTx: tx,
			c:     tx.Bucket(recordsBucketName).Cursor(),
		}, nil
	}

	tx, err := f.bindTxn(txn)
	if err != nil {
		return nil, err
	}
	return &boltCursor{c: tx.Bucket(recordsBucketName).Cursor()}, nil
}

// Close releases the handle and drops it from the environment registry.
//
// This function is part of the engine.File interface implementation.
func (f *boltFile) Close() error {
	f.env.forgetFile(f.name)
	if err := f.db.Close(); err != nil {
		str := fmt.Sprintf("failed to close file %q", f.name)
		return engine.MakeError(engine.ErrDriverSpecific, str, err)
	}
	return nil
}
