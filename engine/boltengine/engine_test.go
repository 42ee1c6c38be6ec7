package boltengine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/maozostr/ember/engine"
)

// newTestEnv opens a fresh environment in a temporary directory.
func newTestEnv(t *testing.T) engine.Engine {
	t.Helper()

	eng, err := engine.Open(engineType, t.TempDir())
	if err != nil {
		t.Fatalf("failed to open environment: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// mustOpenFile opens a file or fails the test.
func mustOpenFile(t *testing.T, eng engine.Engine, name string) engine.File {
	t.Helper()

	file, err := eng.OpenFile(name)
	if err != nil {
		t.Fatalf("failed to open file %q: %v", name, err)
	}
	return file
}

func TestOpenArgs(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
	}{
		{"no args", nil},
		{"wrong type", []interface{}{42}},
		{"extra args", []interface{}{"path", "extra"}},
	}

	for _, test := range tests {
		_, err := engine.Open(engineType, test.args...)
		if !engine.IsErrorCode(err, engine.ErrEnvOpen) {
			t.Errorf("%s: got %v, want ErrEnvOpen", test.name, err)
		}
	}
}

func TestPointOperations(t *testing.T) {
	eng := newTestEnv(t)
	file := mustOpenFile(t, eng, "points.dat")

	key := []byte("alpha")
	value := []byte("one")

	// Missing key.
	if _, err := file.Get(nil, key); !engine.IsErrorCode(err, engine.ErrKeyNotFound) {
		t.Fatalf("get missing: got %v, want ErrKeyNotFound", err)
	}
	if exists, _ := file.Exists(nil, key); exists {
		t.Fatal("missing key reported as existing")
	}

	// Store and read back.
	if err := file.Put(nil, key, value, true); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := file.Get(nil, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("get: got %q, want %q", got, value)
	}
	if exists, _ := file.Exists(nil, key); !exists {
		t.Fatal("stored key reported as missing")
	}

	// No-overwrite put against an existing key.
	err = file.Put(nil, key, []byte("two"), false)
	if !engine.IsErrorCode(err, engine.ErrKeyExists) {
		t.Fatalf("no-overwrite put: got %v, want ErrKeyExists", err)
	}
	got, _ = file.Get(nil, key)
	if !bytes.Equal(got, value) {
		t.Fatal("failed no-overwrite put mutated the stored value")
	}

	// Delete is idempotent.
	if err := file.Delete(nil, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := file.Delete(nil, key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if exists, _ := file.Exists(nil, key); exists {
		t.Fatal("deleted key reported as existing")
	}
}

func TestTxnCommitAbort(t *testing.T) {
	eng := newTestEnv(t)
	file := mustOpenFile(t, eng, "txn.dat")

	// Committed writes become visible.
	txn, err := eng.Begin(engine.TxnWriteNoSync)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := file.Put(txn, []byte("a"), []byte("x"), true); err != nil {
		t.Fatalf("put under txn: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, err := file.Get(nil, []byte("a")); err != nil || !bytes.Equal(got, []byte("x")) {
		t.Fatalf("get after commit: got %q, %v", got, err)
	}

	// Aborted writes are rolled back.
	txn, err = eng.Begin(engine.TxnWriteNoSync)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := file.Put(txn, []byte("b"), []byte("y"), true); err != nil {
		t.Fatalf("put under txn: %v", err)
	}
	if err := txn.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := file.Get(nil, []byte("b")); !engine.IsErrorCode(err, engine.ErrKeyNotFound) {
		t.Fatalf("get after abort: got %v, want ErrKeyNotFound", err)
	}

	// Finalizing twice fails.
	if err := txn.Commit(); !engine.IsErrorCode(err, engine.ErrTxClosed) {
		t.Fatalf("commit after abort: got %v, want ErrTxClosed", err)
	}

	// A transaction that never touched a file finalizes trivially.
	txn, _ = eng.Begin(engine.TxnSync)
	if err := txn.Commit(); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
}

func TestTxnFileConflict(t *testing.T) {
	eng := newTestEnv(t)
	f1 := mustOpenFile(t, eng, "one.dat")
	f2 := mustOpenFile(t, eng, "two.dat")

	txn, err := eng.Begin(engine.TxnWriteNoSync)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := f1.Put(txn, []byte("k"), []byte("v"), true); err != nil {
		t.Fatalf("put binding txn: %v", err)
	}
	err = f2.Put(txn, []byte("k"), []byte("v"), true)
	if !engine.IsErrorCode(err, engine.ErrTxConflict) {
		t.Fatalf("cross-file use: got %v, want ErrTxConflict", err)
	}
	if err := txn.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
}

func TestCursorOps(t *testing.T) {
	eng := newTestEnv(t)
	file := mustOpenFile(t, eng, "cursor.dat")

	records := map[string]string{
		"addr1":   "a1",
		"tx1":     "t1",
		"tx2":     "t2",
		"version": "1",
	}
	for k, v := range records {
		if err := file.Put(nil, []byte(k), []byte(v), true); err != nil {
			t.Fatalf("put %q: %v", k, err)
		}
	}

	cursor, err := file.Cursor(nil)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	defer cursor.Close()

	// Forward iteration returns key order.
	wantOrder := []string{"addr1", "tx1", "tx2", "version"}
	for i, want := range wantOrder {
		k, v, err := cursor.Get(nil, nil, engine.CursorNext)
		if err != nil {
			t.Fatalf("next #%d: %v", i, err)
		}
		if string(k) != want || string(v) != records[want] {
			t.Fatalf("next #%d: got %q=%q, want %q=%q", i, k, v,
				want, records[want])
		}
	}
	_, _, err = cursor.Get(nil, nil, engine.CursorNext)
	if !engine.IsErrorCode(err, engine.ErrKeyNotFound) {
		t.Fatalf("end of cursor: got %v, want ErrKeyNotFound", err)
	}

	seekTests := []struct {
		name      string
		seekKey   string
		seekValue string
		op        engine.CursorOp
		wantKey   string
		wantErr   bool
	}{
		{"set hit", "tx1", "", engine.CursorSet, "tx1", false},
		{"set miss", "tx15", "", engine.CursorSet, "", true},
		{"set-range exact", "tx1", "", engine.CursorSetRange, "tx1", false},
		{"set-range between", "b", "", engine.CursorSetRange, "tx1", false},
		{"set-range past end", "zz", "", engine.CursorSetRange, "", true},
		{"get-both hit", "tx2", "t2", engine.CursorGetBoth, "tx2", false},
		{"get-both value miss", "tx2", "t9", engine.CursorGetBoth, "", true},
		{"get-both-range le", "tx2", "t1", engine.CursorGetBothRange, "tx2", false},
		{"get-both-range gt", "tx2", "t3", engine.CursorGetBothRange, "", true},
	}

	for _, test := range seekTests {
		k, _, err := cursor.Get([]byte(test.seekKey),
			[]byte(test.seekValue), test.op)
		if test.wantErr {
			if !engine.IsErrorCode(err, engine.ErrKeyNotFound) {
				t.Errorf("%s: got %v, want ErrKeyNotFound",
					test.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if string(k) != test.wantKey {
			t.Errorf("%s: got key %q, want %q", test.name, k,
				test.wantKey)
		}
	}

	// A successful seek repositions subsequent iteration.
	if _, _, err := cursor.Get([]byte("tx1"), nil, engine.CursorSet); err != nil {
		t.Fatalf("reposition: %v", err)
	}
	k, _, err := cursor.Get(nil, nil, engine.CursorNext)
	if err != nil || string(k) != "tx2" {
		t.Fatalf("next after seek: got %q, %v, want tx2", k, err)
	}
}

func TestCursorSeesTxnWrites(t *testing.T) {
	eng := newTestEnv(t)
	file := mustOpenFile(t, eng, "txncursor.dat")

	txn, err := eng.Begin(engine.TxnWriteNoSync)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := file.Put(txn, []byte("pending"), []byte("p"), true); err != nil {
		t.Fatalf("put: %v", err)
	}

	cursor, err := file.Cursor(txn)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	k, _, err := cursor.Get(nil, nil, engine.CursorNext)
	if err != nil || string(k) != "pending" {
		t.Fatalf("cursor under txn: got %q, %v, want pending", k, err)
	}
	cursor.Close()

	if err := txn.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
}

func TestRemoveAndRename(t *testing.T) {
	eng := newTestEnv(t)

	file := mustOpenFile(t, eng, "a.dat")
	if err := file.Put(nil, []byte("k"), []byte("v"), true); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Open files cannot be removed or renamed.
	if err := eng.RemoveFile("a.dat"); !engine.IsErrorCode(err, engine.ErrInvalid) {
		t.Fatalf("remove open file: got %v, want ErrInvalid", err)
	}
	if err := eng.RenameFile("a.dat", "b.dat"); !engine.IsErrorCode(err, engine.ErrInvalid) {
		t.Fatalf("rename open file: got %v, want ErrInvalid", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := eng.RenameFile("a.dat", "b.dat"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	file = mustOpenFile(t, eng, "b.dat")
	if got, err := file.Get(nil, []byte("k")); err != nil || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("get after rename: got %q, %v", got, err)
	}
	file.Close()

	if err := eng.RemoveFile("b.dat"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := eng.RemoveFile("b.dat"); !engine.IsErrorCode(err, engine.ErrFileNotFound) {
		t.Fatalf("remove missing: got %v, want ErrFileNotFound", err)
	}
}

func TestVerifyAndSalvage(t *testing.T) {
	dir := t.TempDir()
	eng, err := engine.Open(engineType, dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	file, err := eng.OpenFile("good.dat")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	pairs := []engine.KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	for _, kv := range pairs {
		if err := file.Put(nil, kv.Key, kv.Value, true); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	file.Close()

	// Intact file verifies clean and salvages completely.
	if err := eng.Verify("good.dat"); err != nil {
		t.Fatalf("verify intact: %v", err)
	}
	got, err := eng.Salvage("good.dat", false)
	if err != nil {
		t.Fatalf("salvage: %v", err)
	}
	if len(got) != len(pairs) {
		t.Fatalf("salvage: got %d records, want %d", len(got),
			len(pairs))
	}
	for i, kv := range got {
		if !bytes.Equal(kv.Key, pairs[i].Key) ||
			!bytes.Equal(kv.Value, pairs[i].Value) {

			t.Fatalf("salvage record #%d: got %q=%q, want %q=%q",
				i, kv.Key, kv.Value, pairs[i].Key,
				pairs[i].Value)
		}
	}

	// A missing file is reported as such.
	if err := eng.Verify("nope.dat"); !engine.IsErrorCode(err, engine.ErrFileNotFound) {
		t.Fatalf("verify missing: got %v, want ErrFileNotFound", err)
	}

	// Garbage is reported as corruption.
	garbage := bytes.Repeat([]byte{0xff}, 4096)
	if err := os.WriteFile(filepath.Join(dir, "bad.dat"), garbage, 0600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := eng.Verify("bad.dat"); !engine.IsErrorCode(err, engine.ErrCorruption) {
		t.Fatalf("verify garbage: got %v, want ErrCorruption", err)
	}
	if _, err := eng.Salvage("bad.dat", true); err == nil {
		t.Fatal("salvage of unreadable garbage unexpectedly succeeded")
	}
	if _, err := eng.OpenFile("bad.dat"); !engine.IsErrorCode(err, engine.ErrCorruption) {
		t.Fatalf("open garbage: got %v, want ErrCorruption", err)
	}
}

// TestVerifyDamagedPages ensures verification reports corruption for a file
// whose meta pages are intact but whose remaining pages are damaged, instead
// of crashing while walking them.
func TestVerifyDamagedPages(t *testing.T) {
	dir := t.TempDir()
	eng, err := engine.Open(engineType, dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	file, err := eng.OpenFile("maimed.dat")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	filler := bytes.Repeat([]byte("x"), 128)
	for i := 0; i < 64; i++ {
		key := []byte{'k', byte('0' + i/10), byte('0' + i%10)}
		if err := file.Put(nil, key, filler, true); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Smash everything past the meta pages so the file still opens but
	// the free list and data pages are garbage.
	path := filepath.Join(dir, "maimed.dat")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	metaEnd := int64(2 * os.Getpagesize())
	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open for damage: %v", err)
	}
	garbage := bytes.Repeat([]byte{0xff}, int(info.Size()-metaEnd))
	if _, err := f.WriteAt(garbage, metaEnd); err != nil {
		t.Fatalf("damage: %v", err)
	}
	f.Close()

	if err := eng.Verify("maimed.dat"); !engine.IsErrorCode(err, engine.ErrCorruption) {
		t.Fatalf("verify damaged pages: got %v, want ErrCorruption", err)
	}
	if _, err := eng.Salvage("maimed.dat", false); !engine.IsErrorCode(err, engine.ErrCorruption) {
		t.Fatalf("salvage damaged pages: got %v, want ErrCorruption", err)
	}
}

func TestDataPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	eng, err := engine.Open(engineType, dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	file, err := eng.OpenFile("persist.dat")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if err := file.Put(nil, []byte("k"), []byte("v"), true); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := eng.Checkpoint("persist.dat"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	file.Close()
	if err := eng.Close(); err != nil {
		t.Fatalf("close env: %v", err)
	}

	eng, err = engine.Open(engineType, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer eng.Close()
	file, err = eng.OpenFile("persist.dat")
	if err != nil {
		t.Fatalf("reopen file: %v", err)
	}
	defer file.Close()
	got, err := file.Get(nil, []byte("k"))
	if err != nil || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("get after reopen: got %q, %v", got, err)
	}
}

func TestClosedEnv(t *testing.T) {
	eng := newTestEnv(t)
	if err := eng.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := eng.OpenFile("x.dat"); !engine.IsErrorCode(err, engine.ErrEnvClosed) {
		t.Fatalf("open after close: got %v, want ErrEnvClosed", err)
	}
	if _, err := eng.Begin(engine.TxnWriteNoSync); !engine.IsErrorCode(err, engine.ErrEnvClosed) {
		t.Fatalf("begin after close: got %v, want ErrEnvClosed", err)
	}
	if err := eng.Close(); !engine.IsErrorCode(err, engine.ErrEnvClosed) {
		t.Fatalf("double close: got %v, want ErrEnvClosed", err)
	}
}
