package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"

	// The default engine backends register themselves on import.
	_ "github.com/maozostr/ember/engine/boltengine"
	_ "github.com/maozostr/ember/engine/memengine"
)

// Engine driver types used by Open depending on the environment mode.
const (
	diskEngineType = "boltdb"
	mockEngineType = "memdb"
)

// VerifyResult is the outcome of verifying a file before first use.
type VerifyResult int

const (
	// VerifyOK means the file is intact.
	VerifyOK VerifyResult = iota

	// RecoverOK means the file was damaged and the recovery callback
	// repaired it.
	RecoverOK

	// RecoverFail means the file was damaged and could not be recovered.
	RecoverFail
)

// Env is the single authority over a shared engine environment and the file
// handles open within it.  The zero value is not usable; create instances
// with NewEnv.
//
// All methods are safe for concurrent use.  Handle bookkeeping is guarded by
// one coarse lock since handle-map mutation is rare relative to record
// access; record operations themselves never take it.
type Env struct {
	// updateCount is incremented on every successful write through any
	// accessor bound to this environment.  It must only be used
	// atomically.
	updateCount uint64

	// envLock guards everything below.
	envLock sync.Mutex

	eng  engine.Engine
	path string
	mock bool

	// fileUseCount tracks how many live accessors have each file open.
	// files holds an open handle for every tracked file; a use count of
	// zero marks an idle handle that stays cached for reuse until the
	// next Flush retires it.
	fileUseCount map[string]int
	files        map[string]engine.File
}

// NewEnv returns an environment manager.  It does not touch the engine until
// Open is called.
func NewEnv() *Env {
	return &Env{
		fileUseCount: make(map[string]int),
		files:        make(map[string]engine.File),
	}
}

// lock acquires the environment lock.
func (e *Env) lock() { e.envLock.Lock() }

// unlock releases the environment lock.
func (e *Env) unlock() { e.envLock.Unlock() }

// MakeMock switches the environment into ephemeral mode with no on-disk
// persistence.  It must be called before Open; calling it on an open
// environment is a contract violation.
func (e *Env) MakeMock() error {
	e.lock()
	defer e.unlock()

	if e.eng != nil {
		return makeError(ErrContract,
			"cannot switch an open environment to mock mode", nil)
	}
	e.mock = true
	return nil
}

// IsMock reports whether the environment is in ephemeral mode.
func (e *Env) IsMock() bool {
	e.lock()
	defer e.unlock()
	return e.mock
}

// Open opens the environment rooted at the given path.  It is idempotent:
// opening an already-open environment succeeds without reopening.  In mock
// mode the path is ignored.
func (e *Env) Open(rootPath string) error {
	e.lock()
	defer e.unlock()

	if e.eng != nil {
		return nil
	}

	var eng engine.Engine
	var err error
	if e.mock {
		eng, err = engine.Open(mockEngineType)
	} else {
		eng, err = engine.Open(diskEngineType, rootPath)
	}
	if err != nil {
		str := fmt.Sprintf("failed to open environment at %q", rootPath)
		return makeError(ErrEnvironment, str, err)
	}

	e.eng = eng
	e.path = rootPath
	log.StorLog.Infof("Opened %s environment at %q", eng.Type(), rootPath)
	return nil
}

// Verify runs integrity verification against the named file.  It must be
// called before the file is first opened for normal use; opening a damaged
// file without verification risks engine-level failures.
//
// When verification reports damage, recoverFn is invoked exactly once to
// repair the file (typically via Salvage and rebuild) and the result states
// whether it succeeded.  A file that does not exist yet is trivially intact.
func (e *Env) Verify(name string, recoverFn func(*Env, string) bool) VerifyResult {
	e.lock()
	if e.eng == nil {
		e.unlock()
		log.StorLog.Errorf("Verify of %q requested before environment "+
			"open", name)
		return RecoverFail
	}
	if !e.closeIdleLocked(name) {
		e.unlock()
		log.StorLog.Errorf("Verify of %q requested while the file is "+
			"in use", name)
		return RecoverFail
	}
	err := e.eng.Verify(name)
	e.unlock()

	if err == nil || engine.IsErrorCode(err, engine.ErrFileNotFound) {
		return VerifyOK
	}

	log.StorLog.Warnf("File %q failed verification, attempting "+
		"recovery: %v", name, err)
	if recoverFn == nil {
		return RecoverFail
	}

	// The callback runs without the environment lock held since recovery
	// is expected to salvage and reopen the file through this Env.
	if !recoverFn(e, name) {
		log.StorLog.Errorf("Recovery of %q failed", name)
		return RecoverFail
	}
	log.StorLog.Infof("Recovered file %q", name)
	return RecoverOK
}

// Salvage reads the named file's raw key/value pairs and appends them to
// result in key order.  The whole file is read into memory, so this is
// unsuitable for very large files.  The aggressive flag requests best-effort
// extraction that tolerates more structural damage at the cost of possibly
// including corrupted or duplicate entries.  It returns false when the
// engine cannot produce any salvage data.
func (e *Env) Salvage(name string, aggressive bool, result *[]engine.KV) bool {
	e.lock()
	if e.eng == nil {
		e.unlock()
		log.StorLog.Errorf("Salvage of %q requested before "+
			"environment open", name)
		return false
	}
	if !e.closeIdleLocked(name) {
		e.unlock()
		log.StorLog.Errorf("Salvage of %q requested while the file "+
			"is in use", name)
		return false
	}
	pairs, err := e.eng.Salvage(name, aggressive)
	e.unlock()

	if err != nil {
		log.StorLog.Errorf("Salvage of %q failed: %v", name, err)
		return false
	}
	*result = append(*result, pairs...)
	return true
}

// openFile opens the named file on behalf of an accessor.  An already-open
// file has its reference count incremented and the existing handle is
// shared; otherwise a new handle is opened with a count of one.
func (e *Env) openFile(name string) (engine.File, error) {
	e.lock()
	defer e.unlock()

	if e.eng == nil {
		return nil, makeError(ErrFileOpen,
			"environment is not open", nil)
	}

	if file, ok := e.files[name]; ok {
		e.fileUseCount[name]++
		return file, nil
	}

	file, err := e.eng.OpenFile(name)
	if err != nil {
		if engine.IsErrorCode(err, engine.ErrCorruption) {
			str := fmt.Sprintf("file %q is damaged", name)
			return nil, makeError(ErrCorruption, str, err)
		}
		str := fmt.Sprintf("failed to open file %q", name)
		return nil, makeError(ErrFileOpen, str, err)
	}
	e.files[name] = file
	e.fileUseCount[name] = 1
	return file, nil
}

// CloseFile decrements the named file's reference count.  The underlying
// handle stays open and cached for reuse once the count reaches zero; the
// next Flush retires it.  It is a no-op for files that are not currently
// tracked.
func (e *Env) CloseFile(name string) {
	e.lock()
	defer e.unlock()

	count, ok := e.fileUseCount[name]
	if !ok {
		return
	}
	if count > 0 {
		count--
	}
	e.fileUseCount[name] = count
}

// closeIdleLocked closes and forgets the named file's cached handle when no
// accessor has it open, reporting false while the file is still in use.  The
// environment lock must be held.
func (e *Env) closeIdleLocked(name string) bool {
	if e.fileUseCount[name] > 0 {
		return false
	}
	if file, ok := e.files[name]; ok {
		if err := file.Close(); err != nil {
			log.StorLog.Warnf("Failed to close file %q: %v", name,
				err)
		}
		delete(e.files, name)
		delete(e.fileUseCount, name)
	}
	return true
}

// RemoveFile deletes the named file's storage.  It fails while the file is
// open.
func (e *Env) RemoveFile(name string) bool {
	e.lock()
	defer e.unlock()

	if e.eng == nil {
		return false
	}
	if !e.closeIdleLocked(name) {
		log.StorLog.Warnf("Refusing to remove file %q while it is "+
			"in use", name)
		return false
	}

	if err := e.eng.RemoveFile(name); err != nil {
		log.StorLog.Errorf("Failed to remove file %q: %v", name, err)
		return false
	}
	return true
}

// Flush closes every open file whose reference count has dropped to zero and
// requests the engine flush durable state to disk.  When shutdown is true
// the environment handle itself is closed afterwards.  It is safe to call
// with no files open.
//
// In mock mode the durability work is skipped since there is nothing to
// persist.
func (e *Env) Flush(shutdown bool) {
	e.lock()
	defer e.unlock()

	if e.eng == nil {
		return
	}

	log.StorLog.Debugf("Flush(%v): %d files tracked", shutdown,
		len(e.files))
	for name, count := range e.fileUseCount {
		if count > 0 {
			continue
		}
		if !e.mock {
			if err := e.eng.Checkpoint(name); err != nil {
				log.StorLog.Warnf("Failed to checkpoint %q "+
					"on flush: %v", name, err)
			}
		}
		if err := e.files[name].Close(); err != nil {
			log.StorLog.Warnf("Failed to close %q on flush: %v",
				name, err)
		}
		delete(e.files, name)
		delete(e.fileUseCount, name)
	}

	if !e.mock {
		if err := e.eng.Sync(); err != nil {
			log.StorLog.Warnf("Failed to sync environment: %v", err)
		}
	}

	if shutdown {
		for name, file := range e.files {
			if err := file.Close(); err != nil {
				log.StorLog.Warnf("Failed to close %q on "+
					"shutdown: %v", name, err)
			}
		}
		e.files = make(map[string]engine.File)
		e.fileUseCount = make(map[string]int)
		if err := e.eng.Close(); err != nil {
			log.StorLog.Warnf("Failed to close environment: %v",
				err)
		}
		e.eng = nil
		log.StorLog.Infof("Environment at %q shut down", e.path)
	}
}

// CheckpointLSN records a checkpoint marker for the named file, bounding how
// much work recovery has to replay after a crash.  A no-op in mock mode.
func (e *Env) CheckpointLSN(name string) {
	e.lock()
	defer e.unlock()

	if e.eng == nil || e.mock {
		return
	}
	if err := e.eng.Checkpoint(name); err != nil {
		log.StorLog.Warnf("Failed to checkpoint file %q: %v", name, err)
	}
}

// TxnBegin requests a new transaction from the engine with the given
// durability flags.  It returns nil on failure, never an error.
func (e *Env) TxnBegin(flags engine.TxnFlags) engine.Txn {
	e.lock()
	defer e.unlock()

	if e.eng == nil {
		log.StorLog.Errorf("Transaction requested before environment " +
			"open")
		return nil
	}
	txn, err := e.eng.Begin(flags)
	if err != nil {
		log.StorLog.Errorf("Failed to begin transaction: %v", err)
		return nil
	}
	return txn
}

// UpdateCount returns the number of successful writes issued through
// accessors bound to this environment since it was created.  Background
// flushers use it to detect quiescence.
func (e *Env) UpdateCount() uint64 {
	return atomic.LoadUint64(&e.updateCount)
}

// bumpUpdate records one completed write.
func (e *Env) bumpUpdate() {
	atomic.AddUint64(&e.updateCount, 1)
}
