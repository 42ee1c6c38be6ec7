package engine

// TxnFlags control the durability behavior of a transaction at commit time.
type TxnFlags uint32

const (
	// TxnWriteNoSync is the default durability mode.  Committed
	// transactions are durable to the engine's transaction state but are
	// not guaranteed to be fsynced immediately, trading some
	// crash-durability latency for throughput.
	TxnWriteNoSync TxnFlags = 0

	// TxnSync requests the engine flush durable state to disk as part of
	// committing the transaction.
	TxnSync TxnFlags = 1 << iota
)

// CursorOp specifies how a cursor Get call positions the cursor before
// retrieving a record.
type CursorOp int

const (
	// CursorNext advances the cursor to the next record, or to the first
	// record when the cursor has not been positioned yet.
	CursorNext CursorOp = iota

	// CursorSet positions the cursor at the record whose key exactly
	// matches the provided seek key.
	CursorSet

	// CursorSetRange positions the cursor at the smallest key greater
	// than or equal to the provided seek key.
	CursorSetRange

	// CursorGetBoth positions the cursor at the record matching both the
	// provided seek key and seek value exactly.
	CursorGetBoth

	// CursorGetBothRange positions the cursor at the record matching the
	// provided seek key exactly whose value is greater than or equal to
	// the provided seek value.
	CursorGetBothRange
)

// cursorOpStrings is a map of cursor ops back to their constant names for
// pretty printing.
var cursorOpStrings = map[CursorOp]string{
	CursorNext:         "CursorNext",
	CursorSet:          "CursorSet",
	CursorSetRange:     "CursorSetRange",
	CursorGetBoth:      "CursorGetBoth",
	CursorGetBothRange: "CursorGetBothRange",
}

// String returns the CursorOp as a human-readable name.
func (op CursorOp) String() string {
	if s, ok := cursorOpStrings[op]; ok {
		return s
	}
	return "Unknown CursorOp"
}

// KV is a single raw key/value pair as stored by the engine.  It is produced
// by Salvage and never interpreted by this package.
type KV struct {
	Key   []byte
	Value []byte
}

// Engine provides a generic interface for a shared storage environment that
// houses named record files within a common transactional domain.
//
// The environment owner is expected to serialize calls which mutate the set
// of open files; record-level operations on individual files are governed by
// the engine's own concurrency control and may be issued concurrently.
type Engine interface {
	// Type returns the engine driver type the current instance was
	// created with.
	Type() string

	// OpenFile opens the named record file within the environment,
	// creating it when it does not exist, and returns a handle to it.
	OpenFile(name string) (File, error)

	// RemoveFile deletes the named file's storage.  The file must not be
	// open.  It returns an Error with ErrFileNotFound when no such file
	// exists.
	RemoveFile(name string) error

	// RenameFile atomically renames oldName to newName, replacing any
	// existing file with that name.  Neither file may be open.
	RenameFile(oldName, newName string) error

	// Verify runs the engine's built-in integrity verification against
	// the named file.  It returns nil when the file is intact, an Error
	// with ErrCorruption when the verification reports damage, and an
	// Error with ErrFileNotFound when the file does not exist.  The file
	// must not be open.
	Verify(name string) error

	// Salvage extracts the named file's raw key/value pairs in key order.
	// The aggressive flag requests best-effort extraction tolerating
	// structural damage at the cost of possibly returning corrupted or
	// duplicate entries.  The entire file is read into memory, so this is
	// unsuitable for very large files.  An error is returned when no
	// salvage data can be produced at all.
	Salvage(name string, aggressive bool) ([]KV, error)

	// Begin starts a new transaction with the given durability flags.
	// The transaction binds to the first file it is used against; using
	// it against a second file is an error.
	Begin(flags TxnFlags) (Txn, error)

	// Checkpoint records a checkpoint marker for the named file's current
	// durable state, bounding recovery replay time after a crash.
	Checkpoint(name string) error

	// Sync flushes all durable state to disk.
	Sync() error

	// Close cleanly shuts down the environment.  All files must be closed
	// first.
	Close() error
}

// File is an open handle to one named record store inside an environment.
//
// Every record operation accepts an optional transaction.  When txn is nil
// the operation runs unscoped under the engine's default isolation.
type File interface {
	// Name returns the file name the handle was opened with.
	Name() string

	// Get retrieves the value stored under key.  It returns an Error with
	// ErrKeyNotFound when the key does not exist.
	Get(txn Txn, key []byte) ([]byte, error)

	// Put stores value under key.  When overwrite is false and the key
	// already exists, it returns an Error with ErrKeyExists and leaves
	// the stored value untouched.
	Put(txn Txn, key, value []byte, overwrite bool) error

	// Delete removes the record stored under key.  Deleting a key which
	// does not exist is not an error.
	Delete(txn Txn, key []byte) error

	// Exists reports whether a record is stored under key.
	Exists(txn Txn, key []byte) (bool, error)

	// Cursor returns a cursor over the file's records.  When txn is nil
	// the cursor iterates a stable read snapshot; otherwise it iterates
	// the transaction's view including its uncommitted writes.  The
	// cursor must be closed before the transaction is finalized.
	Cursor(txn Txn) (Cursor, error)

	// Close releases the handle.  It does not affect stored data.
	Close() error
}

// Txn is a single engine transaction.  It must be finalized by exactly one
// call to Commit or Abort.  A transaction must not be shared across threads.
type Txn interface {
	// Commit makes all writes issued under the transaction durable per
	// the flags it was begun with and releases all locks it holds.
	Commit() error

	// Abort rolls back all writes issued under the transaction and
	// releases all locks it holds.
	Abort() error
}

// Cursor is a stateful iterator over one file's records supporting positional
// seeks.
type Cursor interface {
	// Get positions the cursor per op and returns the record found there.
	// The seekKey and seekValue arguments are the seek targets for the
	// set and get-both op variants and are ignored for CursorNext.  The
	// returned slices are copies owned by the caller.  An Error with
	// ErrKeyNotFound indicates end of cursor or no record matching the
	// seek target; callers distinguish it from true errors by code.
	Get(seekKey, seekValue []byte, op CursorOp) (key, value []byte, err error)

	// Close releases the cursor and any snapshot it holds.
	Close() error
}
