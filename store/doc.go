/*
Package store provides a transactional record-store coordination layer over
an embedded storage engine.

The package has two halves.  Env is the single authority over a shared
engine environment: it opens the environment, tracks the reference count of
every named file opened within it, performs integrity verification and
salvage of damaged files, checkpoints, and flushes on shutdown.  DB is a
scoped accessor to one named file: it serializes typed records to and from
raw bytes, scopes an optional transaction, and iterates records via cursors.

Multiple DB instances for the same file name share one underlying file
handle, reference counted by the Env.  Closing the last accessor for a file
closes the handle.  Each DB may carry at most one active transaction at a
time; transactions must never be shared across accessors or goroutines.

Records implement the Serializable interface to define their byte layout.
Small built-in record types cover byte strings and integers, including the
reserved "version" key convention used by ReadVersion and WriteVersion.
*/
package store
