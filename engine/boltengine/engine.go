package boltengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

const (
	// dbFileMode is the file mode used when creating database files.
	dbFileMode = 0600

	// openTimeout bounds how long an open waits on the file lock held by
	// another process before failing.
	openTimeout = time.Second * 5
)

// recordsBucketName is the name of the single root bucket every database
// file stores its records in.
var recordsBucketName = []byte("records")

// boltEnv houses the environment directory along with the set of database
// files currently open within it.  The files map exists so Checkpoint and
// Sync can reach handles that are open elsewhere without taking a second
// file lock on the same database, which would deadlock.
type boltEnv struct {
	mtx      sync.Mutex
	basePath string
	files    map[string]*boltFile
	closed   bool
}

// Enforce boltEnv implements the engine.Engine interface.
var _ engine.Engine = (*boltEnv)(nil)

// openEnv creates the environment directory when needed and returns an
// engine rooted at it.
func openEnv(basePath string) (*boltEnv, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		str := fmt.Sprintf("failed to create environment path %q",
			basePath)
		return nil, engine.MakeError(engine.ErrEnvOpen, str, err)
	}

	log.BoltLog.Debugf("Opened environment at %q", basePath)
	return &boltEnv{
		basePath: basePath,
		files:    make(map[string]*boltFile),
	}, nil
}

// Type returns the engine driver type.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Type() string {
	return engineType
}

// filePath returns the on-disk path for the named file.
func (e *boltEnv) filePath(name string) string {
	return filepath.Join(e.basePath, name)
}

// checkClosed returns an error when the environment has been shut down.
// Must be called with the environment lock held.
func (e *boltEnv) checkClosed() error {
	if e.closed {
		return engine.MakeError(engine.ErrEnvClosed,
			"environment is closed", nil)
	}
	return nil
}

// OpenFile opens the named database file, creating it along with its root
// bucket when it does not exist.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) OpenFile(name string) (engine.File, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	if _, exists := e.files[name]; exists {
		str := fmt.Sprintf("file %q is already open", name)
		return nil, engine.MakeError(engine.ErrFileOpenFailed, str, nil)
	}

	db, err := bolt.Open(e.filePath(name), dbFileMode,
		&bolt.Options{Timeout: openTimeout})
	if err != nil {
		// Distinguish a damaged file from an inaccessible one so
		// callers can route it into the verify and salvage flow.
		code := engine.ErrFileOpenFailed
		switch err {
		case bolt.ErrInvalid, bolt.ErrChecksum, bolt.ErrVersionMismatch:
			code = engine.ErrCorruption
		}
		str := fmt.Sprintf("failed to open file %q", name)
		return nil, engine.MakeError(code, str, err)
	}

	// Committed transactions are made durable by explicit syncs instead
	// of an fsync per commit.
	db.NoSync = true

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucketName)
		return err
	})
	if err != nil {
		db.Close()
		str := fmt.Sprintf("failed to initialize file %q", name)
		return nil, engine.MakeError(engine.ErrFileOpenFailed, str, err)
	}

	file := &boltFile{env: e, name: name, db: db}
	e.files[name] = file
	return file, nil
}

// forgetFile drops the named file from the open-file registry.  Called by
// boltFile.Close.
func (e *boltEnv) forgetFile(name string) {
	e.mtx.Lock()
	delete(e.files, name)
	e.mtx.Unlock()
}

// RemoveFile deletes the named file's storage.  The file must not be open.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) RemoveFile(name string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	if _, exists := e.files[name]; exists {
		str := fmt.Sprintf("cannot remove open file %q", name)
		return engine.MakeError(engine.ErrInvalid, str, nil)
	}

	err := os.Remove(e.filePath(name))
	if os.IsNotExist(err) {
		str := fmt.Sprintf("file %q does not exist", name)
		return engine.MakeError(engine.ErrFileNotFound, str, err)
	}
	if err != nil {
		str := fmt.Sprintf("failed to remove file %q", name)
		return engine.MakeError(engine.ErrDriverSpecific, str, err)
	}
	return nil
}

// RenameFile renames oldName to newName, replacing any existing file with
// that name.  Neither file may be open.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) RenameFile(oldName, newName string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	for _, name := range []string{oldName, newName} {
		if _, exists := e.files[name]; exists {
			str := fmt.Sprintf("cannot rename open file %q", name)
			return engine.MakeError(engine.ErrInvalid, str, nil)
		}
	}

	err := os.Rename(e.filePath(oldName), e.filePath(newName))
	if os.IsNotExist(err) {
		str := fmt.Sprintf("file %q does not exist", oldName)
		return engine.MakeError(engine.ErrFileNotFound, str, err)
	}
	if err != nil {
		str := fmt.Sprintf("failed to rename file %q to %q", oldName,
			newName)
		return engine.MakeError(engine.ErrDriverSpecific, str, err)
	}
	return nil
}

// Begin starts a new transaction.  The transaction binds to the first file
// it is used against.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Begin(flags engine.TxnFlags) (engine.Txn, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	return &boltTxn{flags: flags}, nil
}

// Checkpoint forces the named file's durable state to disk.  bbolt keeps no
// separate transaction log, so syncing the memory map is the whole
// checkpoint.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Checkpoint(name string) error {
	e.mtx.Lock()
	file, isOpen := e.files[name]
	err := e.checkClosed()
	e.mtx.Unlock()
	if err != nil {
		return err
	}

	if isOpen {
		if err := file.db.Sync(); err != nil {
			str := fmt.Sprintf("failed to sync file %q", name)
			return engine.MakeError(engine.ErrDriverSpecific, str,
				err)
		}
		return nil
	}

	// Not open here.  A closed bbolt database is already fully on disk,
	// so only verify it exists.
	if _, err := os.Stat(e.filePath(name)); os.IsNotExist(err) {
		str := fmt.Sprintf("file %q does not exist", name)
		return engine.MakeError(engine.ErrFileNotFound, str, err)
	}
	return nil
}

// Sync flushes every open database file to disk.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Sync() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	for name, file := range e.files {
		if err := file.db.Sync(); err != nil {
			str := fmt.Sprintf("failed to sync file %q", name)
			return engine.MakeError(engine.ErrDriverSpecific, str,
				err)
		}
	}
	return nil
}

// Close shuts the environment down, closing any database files that are
// still open.
//
// This function is part of the engine.Engine interface implementation.
func (e *boltEnv) Close() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	for name, file := range e.files {
		if err := file.db.Close(); err != nil {
			log.BoltLog.Warnf("Failed to close file %q on "+
				"shutdown: %v", name, err)
		}
	}
	e.files = make(map[string]*boltFile)
	e.closed = true
	log.BoltLog.Debugf("Closed environment at %q", e.basePath)
	return nil
}
