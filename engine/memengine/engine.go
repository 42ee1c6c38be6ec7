package memengine

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

// treeDegree is the branching factor for the record trees.
const treeDegree = 16

// item is a single stored record.  The tree orders items by key.
type item struct {
	key   []byte
	value []byte
}

// lessItem orders items by lexicographic key comparison.
func lessItem(a, b *item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// newTree returns an empty record tree.
func newTree() *btree.BTreeG[*item] {
	return btree.NewG(treeDegree, lessItem)
}

// memData is the stored contents of one named file.  It outlives the file
// handles opened against it so data survives a close and reopen within the
// process.
type memData struct {
	// mtx guards the tree pointer.  Committing swaps in a new tree; the
	// trees themselves are copy-on-write and safe for lock-free reads
	// once published.
	mtx  sync.RWMutex
	tree *btree.BTreeG[*item]

	// wmtx serializes writers.  A transaction holds it from the moment
	// it binds to this file until it commits or aborts.
	wmtx sync.Mutex
}

// snapshot returns the current published tree.
func (d *memData) snapshot() *btree.BTreeG[*item] {
	d.mtx.RLock()
	t := d.tree
	d.mtx.RUnlock()
	return t
}

// publish swaps in a new tree as the file's contents.
func (d *memData) publish(t *btree.BTreeG[*item]) {
	d.mtx.Lock()
	d.tree = t
	d.mtx.Unlock()
}

// memEnv is an ephemeral environment holding named files in memory.
type memEnv struct {
	mtx     sync.Mutex
	data    map[string]*memData
	handles map[string]*memFile
	closed  bool
}

// Enforce memEnv implements the engine.Engine interface.
var _ engine.Engine = (*memEnv)(nil)

func newEnv() *memEnv {
	log.MemdLog.Debugf("Opened ephemeral environment")
	return &memEnv{
		data:    make(map[string]*memData),
		handles: make(map[string]*memFile),
	}
}

// Type returns the engine driver type.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Type() string {
	return engineType
}

// checkClosed returns an error when the environment has been shut down.
// Must be called with the environment lock held.
func (e *memEnv) checkClosed() error {
	if e.closed {
		return engine.MakeError(engine.ErrEnvClosed,
			"environment is closed", nil)
	}
	return nil
}

// OpenFile opens the named file, creating it when it does not exist.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) OpenFile(name string) (engine.File, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	if _, exists := e.handles[name]; exists {
		str := fmt.Sprintf("file %q is already open", name)
		return nil, engine.MakeError(engine.ErrFileOpenFailed, str, nil)
	}

	data, exists := e.data[name]
	if !exists {
		data = &memData{tree: newTree()}
		e.data[name] = data
	}

	file := &memFile{env: e, name: name, data: data}
	e.handles[name] = file
	return file, nil
}

// forgetFile drops the named file from the open-handle registry.  Called by
// memFile.Close.
func (e *memEnv) forgetFile(name string) {
	e.mtx.Lock()
	delete(e.handles, name)
	e.mtx.Unlock()
}

// lookupClosed returns the named file's data when it exists and is not open.
// Must be called with the environment lock held.
func (e *memEnv) lookupClosed(verb, name string) (*memData, error) {
	if _, exists := e.handles[name]; exists {
		str := fmt.Sprintf("cannot %s open file %q", verb, name)
		return nil, engine.MakeError(engine.ErrInvalid, str, nil)
	}
	data, exists := e.data[name]
	if !exists {
		str := fmt.Sprintf("file %q does not exist", name)
		return nil, engine.MakeError(engine.ErrFileNotFound, str, nil)
	}
	return data, nil
}

// RemoveFile deletes the named file.  The file must not be open.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) RemoveFile(name string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	if _, err := e.lookupClosed("remove", name); err != nil {
		return err
	}
	delete(e.data, name)
	return nil
}

// RenameFile renames oldName to newName, replacing any existing file with
// that name.  Neither file may be open.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) RenameFile(oldName, newName string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	data, err := e.lookupClosed("rename", oldName)
	if err != nil {
		return err
	}
	if _, exists := e.handles[newName]; exists {
		str := fmt.Sprintf("cannot rename over open file %q", newName)
		return engine.MakeError(engine.ErrInvalid, str, nil)
	}

	delete(e.data, oldName)
	e.data[newName] = data
	return nil
}

// Verify always reports the file as intact since there is no storage to
// damage.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Verify(name string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	_, err := e.lookupClosed("verify", name)
	return err
}

// Salvage returns every stored record in key order.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Salvage(name string, aggressive bool) ([]engine.KV, error) {
	e.mtx.Lock()
	data, err := func() (*memData, error) {
		if err := e.checkClosed(); err != nil {
			return nil, err
		}
		return e.lookupClosed("salvage", name)
	}()
	e.mtx.Unlock()
	if err != nil {
		return nil, err
	}

	var pairs []engine.KV
	data.snapshot().Ascend(func(it *item) bool {
		pairs = append(pairs, engine.KV{
			Key:   dup(it.key),
			Value: dup(it.value),
		})
		return true
	})
	return pairs, nil
}

// Begin starts a new transaction.  The transaction binds to the first file
// it is used against.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Begin(flags engine.TxnFlags) (engine.Txn, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	return &memTxn{flags: flags}, nil
}

// Checkpoint is a no-op since nothing is persisted.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Checkpoint(name string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.checkClosed()
}

// Sync is a no-op since nothing is persisted.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Sync() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.checkClosed()
}

// Close shuts the environment down and discards all stored data.
//
// This function is part of the engine.Engine interface implementation.
func (e *memEnv) Close() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if err := e.checkClosed(); err != nil {
		return err
	}
	e.data = make(map[string]*memData)
	e.handles = make(map[string]*memFile)
	e.closed = true
	log.MemdLog.Debugf("Closed ephemeral environment")
	return nil
}

// dup returns a caller-owned copy of b so stored slices and returned slices
// never alias caller buffers.
func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
