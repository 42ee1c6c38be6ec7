package store

import (
	"bytes"
	"strings"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

// rewriteSuffix is appended to a file's name for the temporary copy built by
// Rewrite before it is swapped in.
const rewriteSuffix = ".rewrite"

// keyString decodes a raw stored key as a var-string key.  It reports false
// for keys that were not written in the string encoding.
func keyString(raw []byte) (string, bool) {
	r := bytes.NewReader(raw)
	var key StringRecord
	if err := key.Deserialize(r, CodecVersion); err != nil || r.Len() != 0 {
		return "", false
	}
	return string(key), true
}

// Rewrite compacts the named file offline: every record is copied into a
// fresh file which then atomically replaces the original, reclaiming the
// space of deleted records.  String keys beginning with skipPrefix are
// dropped during the copy; an empty prefix keeps everything.  The stored
// version record, when present, is carried over regardless of the prefix.
//
// Rewrite is not transactionally scoped and refuses to run while the file is
// open.  It is intended for maintenance windows, not live concurrent use.
func Rewrite(env *Env, name string, skipPrefix string) bool {
	env.lock()
	defer env.unlock()

	if env.eng == nil {
		log.StorLog.Errorf("Rewrite of %q requested before "+
			"environment open", name)
		return false
	}
	if !env.closeIdleLocked(name) {
		log.StorLog.Warnf("Refusing to rewrite file %q while it is "+
			"in use", name)
		return false
	}

	tmpName := name + rewriteSuffix

	// Drop a stale temporary from an earlier failed attempt.
	if err := env.eng.RemoveFile(tmpName); err != nil &&
		!engine.IsErrorCode(err, engine.ErrFileNotFound) {

		log.StorLog.Errorf("Failed to clear stale rewrite file %q: %v",
			tmpName, err)
		return false
	}

	if !copyRecords(env.eng, name, tmpName, skipPrefix) {
		if err := env.eng.RemoveFile(tmpName); err != nil &&
			!engine.IsErrorCode(err, engine.ErrFileNotFound) {

			log.StorLog.Warnf("Failed to clean up rewrite file "+
				"%q: %v", tmpName, err)
		}
		return false
	}

	if err := env.eng.RenameFile(tmpName, name); err != nil {
		log.StorLog.Errorf("Failed to swap rewritten file %q into "+
			"place: %v", name, err)
		return false
	}
	log.StorLog.Infof("Rewrote file %q", name)
	return true
}

// copyRecords copies srcName's records into a fresh dstName, skipping string
// keys with the given prefix.  Both files are closed before it returns.
func copyRecords(eng engine.Engine, srcName, dstName, skipPrefix string) bool {
	src, err := eng.OpenFile(srcName)
	if err != nil {
		log.StorLog.Errorf("Failed to open %q for rewrite: %v",
			srcName, err)
		return false
	}
	defer src.Close()

	dst, err := eng.OpenFile(dstName)
	if err != nil {
		log.StorLog.Errorf("Failed to open rewrite file %q: %v",
			dstName, err)
		return false
	}
	defer dst.Close()

	// Remember the stored version so it survives even a prefix that
	// covers the reserved key.
	var verKey StringRecord = versionKey
	rawVerKey, err := serialize(&verKey)
	if err != nil {
		return false
	}
	rawVersion, hasVersion := func() ([]byte, bool) {
		v, gerr := src.Get(nil, rawVerKey)
		return v, gerr == nil
	}()

	cursor, err := src.Cursor(nil)
	if err != nil {
		log.StorLog.Errorf("Failed to open cursor on %q: %v", srcName,
			err)
		return false
	}
	defer cursor.Close()

	copied := 0
	for {
		k, v, err := cursor.Get(nil, nil, engine.CursorNext)
		if engine.IsErrorCode(err, engine.ErrKeyNotFound) {
			break
		}
		if err != nil {
			log.StorLog.Errorf("Cursor read failed during rewrite "+
				"of %q: %v", srcName, err)
			return false
		}

		if skipPrefix != "" {
			if s, ok := keyString(k); ok &&
				strings.HasPrefix(s, skipPrefix) {

				continue
			}
		}
		if err := dst.Put(nil, k, v, true); err != nil {
			log.StorLog.Errorf("Failed to copy record during "+
				"rewrite of %q: %v", srcName, err)
			return false
		}
		copied++
	}

	if hasVersion {
		if err := dst.Put(nil, rawVerKey, rawVersion, true); err != nil {
			log.StorLog.Errorf("Failed to carry version over "+
				"during rewrite of %q: %v", srcName, err)
			return false
		}
	}

	log.StorLog.Debugf("Copied %d records from %q to %q", copied, srcName,
		dstName)
	return true
}
