/*
Package memengine implements an ephemeral engine driver with no on-disk
persistence, suitable for isolated testing.

Every named file is an ordered in-memory tree of records.  Transactions take
a copy-on-write clone of the file's tree, so their writes are invisible to
readers until commit swaps the clone in; abort simply discards it.  A
per-file writer lock is held from the moment a transaction binds to the file
until it is finalized, so a second writer blocks just as it would against a
real engine.  Verification always succeeds, salvage returns every stored
record, and checkpoint and sync are no-ops.

Usage is through the engine package:

	eng, err := engine.Open("memdb")
*/
package memengine
