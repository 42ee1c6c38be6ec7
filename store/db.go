package store

import (
	"fmt"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

// DB provides scoped access to one named file's records.  It binds a shared
// file handle obtained from the environment, an optional active transaction,
// and a read-only flag.  A DB must be released with Close on every exit
// path; Close aborts any transaction still active, though callers should
// commit or abort explicitly rather than rely on that.
//
// A DB must not be used from multiple goroutines concurrently.  Open
// separate accessors instead; they share the underlying handle.
type DB struct {
	env      *Env
	name     string
	readOnly bool
	file     engine.File
	txn      engine.Txn
}

// Open opens an accessor for the named file, creating the file when it does
// not exist.  The environment must already be open.  A file the engine
// reports as damaged is surfaced as ErrCorruption so callers can route it
// into the verification and salvage flow.
func Open(env *Env, name string, readOnly bool) (*DB, error) {
	file, err := env.openFile(name)
	if err != nil {
		if IsErrorCode(err, ErrCorruption) {
			return nil, err
		}
		str := fmt.Sprintf("failed to open accessor for %q", name)
		return nil, makeError(ErrAccessorOpen, str, err)
	}

	return &DB{
		env:      env,
		name:     name,
		readOnly: readOnly,
		file:     file,
	}, nil
}

// Name returns the file name the accessor is bound to.
func (d *DB) Name() string {
	return d.name
}

// Close releases the accessor's resources.  A transaction still active is
// aborted.  Close is idempotent and safe on a nil accessor so it can be
// deferred unconditionally.
func (d *DB) Close() {
	if d == nil || d.file == nil {
		return
	}

	if d.txn != nil {
		log.StorLog.Warnf("Accessor for %q closed with an active "+
			"transaction, aborting it", d.name)
		if err := d.txn.Abort(); err != nil {
			log.StorLog.Warnf("Failed to abort transaction on "+
				"close of %q: %v", d.name, err)
		}
		d.txn = nil
	}

	// A writable accessor's close counts as update traffic, a read-only
	// one's does not.
	if !d.readOnly {
		d.env.bumpUpdate()
	}
	d.env.CloseFile(d.name)
	d.file = nil
}

// checkOpen returns a contract error when the accessor has been closed.
func (d *DB) checkOpen() error {
	if d.file == nil {
		return makeError(ErrContract, "accessor is closed", nil)
	}
	return nil
}

// ReadRaw retrieves the raw bytes stored under the raw key.  The second
// return value reports whether the record exists.
func (d *DB) ReadRaw(key []byte) ([]byte, bool) {
	if err := d.checkOpen(); err != nil {
		log.StorLog.Errorf("ReadRaw on %q: %v", d.name, err)
		return nil, false
	}

	value, err := d.file.Get(d.txn, key)
	if err != nil {
		if !engine.IsErrorCode(err, engine.ErrKeyNotFound) {
			log.StorLog.Errorf("Read from %q failed: %v", d.name,
				err)
		}
		return nil, false
	}
	return value, true
}

// Read retrieves the record stored under key and decodes it into value.  It
// returns false when the record does not exist or its bytes do not decode
// into value's type.  Decode failures are logged but deliberately treated as
// "not found" so readers tolerate format evolution.
func (d *DB) Read(key, value Serializable) bool {
	rawKey, err := serialize(key)
	if err != nil {
		log.StorLog.Errorf("Failed to encode key for %q: %v", d.name,
			err)
		return false
	}

	raw, ok := d.ReadRaw(rawKey)
	if !ok {
		return false
	}
	if err := deserialize(value, raw); err != nil {
		log.StorLog.Warnf("Discarding undecodable record in %q: %v",
			d.name, err)
		return false
	}
	return true
}

// WriteRaw stores raw value bytes under the raw key.  When overwrite is
// false and the key already exists the write fails.  Writing through a
// read-only accessor is a contract violation and always fails.
func (d *DB) WriteRaw(key, value []byte, overwrite bool) bool {
	if err := d.checkOpen(); err != nil {
		log.StorLog.Errorf("WriteRaw on %q: %v", d.name, err)
		return false
	}
	if d.readOnly {
		log.StorLog.Errorf("Write on read-only accessor for %q "+
			"refused", d.name)
		return false
	}

	if err := d.file.Put(d.txn, key, value, overwrite); err != nil {
		if !engine.IsErrorCode(err, engine.ErrKeyExists) {
			log.StorLog.Errorf("Write to %q failed: %v", d.name,
				err)
		}
		return false
	}
	d.env.bumpUpdate()
	return true
}

// Write encodes key and value and stores the pair, honoring the overwrite
// flag.
func (d *DB) Write(key, value Serializable, overwrite bool) bool {
	rawKey, err := serialize(key)
	if err != nil {
		log.StorLog.Errorf("Failed to encode key for %q: %v", d.name,
			err)
		return false
	}
	rawValue, err := serialize(value)
	if err != nil {
		log.StorLog.Errorf("Failed to encode value for %q: %v", d.name,
			err)
		return false
	}
	return d.WriteRaw(rawKey, rawValue, overwrite)
}

// EraseRaw removes the record stored under the raw key.  Erasing a key that
// does not exist succeeds; false is returned only on a genuine engine
// failure.
func (d *DB) EraseRaw(key []byte) bool {
	if err := d.checkOpen(); err != nil {
		log.StorLog.Errorf("EraseRaw on %q: %v", d.name, err)
		return false
	}
	if d.readOnly {
		log.StorLog.Errorf("Erase on read-only accessor for %q "+
			"refused", d.name)
		return false
	}

	if err := d.file.Delete(d.txn, key); err != nil {
		log.StorLog.Errorf("Erase from %q failed: %v", d.name, err)
		return false
	}
	d.env.bumpUpdate()
	return true
}

// Erase encodes key and removes the record stored under it.  Erase is
// idempotent with respect to missing keys.
func (d *DB) Erase(key Serializable) bool {
	rawKey, err := serialize(key)
	if err != nil {
		log.StorLog.Errorf("Failed to encode key for %q: %v", d.name,
			err)
		return false
	}
	return d.EraseRaw(rawKey)
}

// ExistsRaw reports whether a record is stored under the raw key without
// retrieving it.
func (d *DB) ExistsRaw(key []byte) bool {
	if err := d.checkOpen(); err != nil {
		log.StorLog.Errorf("ExistsRaw on %q: %v", d.name, err)
		return false
	}

	exists, err := d.file.Exists(d.txn, key)
	if err != nil {
		log.StorLog.Errorf("Exists check on %q failed: %v", d.name,
			err)
		return false
	}
	return exists
}

// Exists encodes key and reports whether a record is stored under it.
func (d *DB) Exists(key Serializable) bool {
	rawKey, err := serialize(key)
	if err != nil {
		log.StorLog.Errorf("Failed to encode key for %q: %v", d.name,
			err)
		return false
	}
	return d.ExistsRaw(rawKey)
}

// TxnBegin starts a transaction scoped to this accessor.  At most one
// transaction may be active per accessor; beginning a second one is a
// contract violation and fails.
func (d *DB) TxnBegin() bool {
	if d.file == nil {
		log.StorLog.Errorf("TxnBegin on closed accessor for %q",
			d.name)
		return false
	}
	if d.txn != nil {
		log.StorLog.Errorf("TxnBegin on %q with a transaction "+
			"already active", d.name)
		return false
	}

	txn := d.env.TxnBegin(engine.TxnWriteNoSync)
	if txn == nil {
		return false
	}
	d.txn = txn
	return true
}

// TxnCommit commits the accessor's active transaction.  It fails when none
// is active.  Afterwards reads and writes are unscoped until a new
// transaction begins.
func (d *DB) TxnCommit() bool {
	if d.txn == nil {
		log.StorLog.Errorf("TxnCommit on %q with no active "+
			"transaction", d.name)
		return false
	}

	err := d.txn.Commit()
	d.txn = nil
	if err != nil {
		log.StorLog.Errorf("Failed to commit transaction on %q: %v",
			d.name, err)
		return false
	}
	return true
}

// TxnAbort rolls back the accessor's active transaction.  It fails when
// none is active.
func (d *DB) TxnAbort() bool {
	if d.txn == nil {
		log.StorLog.Errorf("TxnAbort on %q with no active "+
			"transaction", d.name)
		return false
	}

	err := d.txn.Abort()
	d.txn = nil
	if err != nil {
		log.StorLog.Errorf("Failed to abort transaction on %q: %v",
			d.name, err)
		return false
	}
	return true
}

// ReadVersion reads the schema version integer stored under the reserved
// "version" key.
func (d *DB) ReadVersion() (uint32, bool) {
	key := StringRecord(versionKey)
	var version Uint32Record
	if !d.Read(&key, &version) {
		return 0, false
	}
	return uint32(version), true
}

// WriteVersion stores the schema version integer under the reserved
// "version" key.
func (d *DB) WriteVersion(version uint32) bool {
	key := StringRecord(versionKey)
	v := Uint32Record(version)
	return d.Write(&key, &v, true)
}

// GetCursor returns a cursor over the file's records.  When the accessor
// has an active transaction the cursor iterates its view, including
// uncommitted writes, and must be closed before the transaction is
// finalized.
func (d *DB) GetCursor() (engine.Cursor, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	cursor, err := d.file.Cursor(d.txn)
	if err != nil {
		return nil, makeError(ErrEngine, "failed to open cursor", err)
	}
	return cursor, nil
}

// ReadAtCursor positions cursor per op and overwrites key and value with the
// raw record found there.
//
// The set variants use *key as the seek target and the get-both variants use
// both *key and *value, so those buffers must be populated before the call;
// an unpopulated seek target is a contract violation, reported explicitly
// rather than read as uninitialized state.  The returned error is the
// engine's raw status: callers distinguish end of cursor and missed seeks
// from hard failures via engine.IsErrorCode with engine.ErrKeyNotFound.
func (d *DB) ReadAtCursor(cursor engine.Cursor, key, value *[]byte, op engine.CursorOp) error {
	if key == nil || value == nil {
		return makeError(ErrContract,
			"cursor buffers must not be nil", nil)
	}
	switch op {
	case engine.CursorSet, engine.CursorSetRange:
		if *key == nil {
			str := fmt.Sprintf("cursor op %v requires a seek key",
				op)
			return makeError(ErrContract, str, nil)
		}
	case engine.CursorGetBoth, engine.CursorGetBothRange:
		if *key == nil || *value == nil {
			str := fmt.Sprintf("cursor op %v requires a seek key "+
				"and value", op)
			return makeError(ErrContract, str, nil)
		}
	}

	k, v, err := cursor.Get(*key, *value, op)
	if err != nil {
		return err
	}
	*key = k
	*value = v
	return nil
}
