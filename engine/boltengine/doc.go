/*
Package boltengine implements an engine driver backed by bbolt.

The environment is a directory and every named file is an independent bbolt
database file inside it holding a single root bucket of records.  Databases
are opened with syncing disabled so that committed transactions are durable to
the memory map but not fsynced immediately; Checkpoint, Sync, and transactions
begun with the TxnSync flag force the data to disk explicitly.

bbolt transactions belong to a single database, so a transaction begun at the
environment binds lazily to the first file it is used against.  bbolt allows
a single write transaction per database; a second writer blocks until the
first commits or aborts.

Usage is through the engine package:

	eng, err := engine.Open("boltdb", "/path/to/env")
*/
package boltengine
