package store

import (
	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

// RecoverFile rebuilds the named file from whatever records an aggressive
// salvage can extract.  It is the canonical recovery callback for Verify:
// salvage the damaged file, drop it, and write every salvaged pair into a
// fresh file under a single transaction.  It returns false when no salvage
// data could be produced or the rebuilt file could not be written.
//
// Aggressive salvage may surface corrupted entries; they are written back
// verbatim and filtered out later by readers, which treat undecodable
// records as absent.
func RecoverFile(env *Env, name string) bool {
	var salvaged []engine.KV
	if !env.Salvage(name, true, &salvaged) {
		log.StorLog.Errorf("Salvage produced no data for %q", name)
		return false
	}
	log.StorLog.Infof("Salvaged %d records from %q", len(salvaged), name)

	if !env.RemoveFile(name) {
		return false
	}

	db, err := Open(env, name, false)
	if err != nil {
		log.StorLog.Errorf("Failed to open rebuilt file %q: %v", name,
			err)
		return false
	}
	defer db.Close()

	if !db.TxnBegin() {
		return false
	}
	restored := 0
	for _, kv := range salvaged {
		if db.WriteRaw(kv.Key, kv.Value, true) {
			restored++
		}
	}
	if !db.TxnCommit() {
		return false
	}

	log.StorLog.Infof("Restored %d of %d salvaged records into %q",
		restored, len(salvaged), name)
	return true
}
