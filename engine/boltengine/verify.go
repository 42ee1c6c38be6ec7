package boltengine

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

// checkFile opens the named file and runs fn against it, converting panics
// out of bbolt's page traversal on structurally damaged files into corruption
// errors.  The open is read-write so the free list loads here, under the
// guard, instead of inside Tx.Check's traversal goroutine where a panic
// cannot be recovered.
func (e *boltEnv) checkFile(name string, fn func(db *bolt.DB) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			str := fmt.Sprintf("file %q is damaged: %v", name, p)
			err = engine.MakeError(engine.ErrCorruption, str, nil)
		}
	}()

	db, err := bolt.Open(e.filePath(name), dbFileMode,
		&bolt.Options{Timeout: openTimeout})
	if err != nil {
		str := fmt.Sprintf("file %q cannot be opened for verification",
			name)
		return engine.MakeError(engine.ErrCorruption, str, err)
	}
	defer db.Close()

	return fn(db)
}

// Verify runs bbolt's built-in consistency check against the named file.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Verify(name string) error {
	e.mtx.Lock()
	_, isOpen := e.files[name]
	err := e.checkClosed()
	e.mtx.Unlock()
	if err != nil {
		return err
	}
	if isOpen {
		str := fmt.Sprintf("cannot verify open file %q", name)
		return engine.MakeError(engine.ErrInvalid, str, nil)
	}
	if _, err := os.Stat(e.filePath(name)); os.IsNotExist(err) {
		str := fmt.Sprintf("file %q does not exist", name)
		return engine.MakeError(engine.ErrFileNotFound, str, err)
	}

	return e.checkFile(name, func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			// Walk every page of the records tree on this goroutine
			// first.  Tx.Check runs its traversal on a goroutine of
			// its own, so damage that panics the walk has to
			// surface here where the checkFile guard can catch it.
			if b := tx.Bucket(recordsBucketName); b != nil {
				c := b.Cursor()
				for k, _ := c.First(); k != nil; k, _ = c.Next() {
				}
			}

			var checkErr error
			for cerr := range tx.Check() {
				if checkErr == nil {
					checkErr = cerr
				}
			}
			if checkErr != nil {
				str := fmt.Sprintf("file %q failed "+
					"verification", name)
				return engine.MakeError(engine.ErrCorruption,
					str, checkErr)
			}
			return nil
		})
	})
}

// Salvage extracts the named file's raw records in key order.  In aggressive
// mode a traversal failure part way through returns the records read so far
// instead of failing outright.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Salvage(name string, aggressive bool) ([]engine.KV, error) {
	e.mtx.Lock()
	_, isOpen := e.files[name]
	err := e.checkClosed()
	e.mtx.Unlock()
	if err != nil {
		return nil, err
	}
	if isOpen {
		str := fmt.Sprintf("cannot salvage open file %q", name)
		return nil, engine.MakeError(engine.ErrInvalid, str, nil)
	}
	if _, err := os.Stat(e.filePath(name)); os.IsNotExist(err) {
		str := fmt.Sprintf("file %q does not exist", name)
		return nil, engine.MakeError(engine.ErrFileNotFound, str, err)
	}

	var pairs []engine.KV
	err = e.checkFile(name, func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(recordsBucketName)
			if b == nil {
				// Nothing stored yet.
				return nil
			}
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				pairs = append(pairs, engine.KV{
					Key:   dup(k),
					Value: dup(v),
				})
			}
			return nil
		})
	})
	if err != nil {
		if aggressive && len(pairs) > 0 {
			log.BoltLog.Warnf("Salvage of %q returning %d records "+
				"read before failure: %v", name, len(pairs), err)
			return pairs, nil
		}
		return nil, err
	}
	return pairs, nil
}
