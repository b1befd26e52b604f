package storage

import (
	"bytes"
	"testing"
)

func TestMemDBPutGet(t *testing.T) {
	db := NewMemDB()
	key := []byte("custody/record/abc")
	value := []byte{1, 2, 3}

	if err := db.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get = %v, want %v", got, value)
	}
}

func TestMemDBMissingKey(t *testing.T) {
	db := NewMemDB()
	if _, err := db.Get([]byte("missing")); err == nil {
		t.Fatalf("missing key must return an error")
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte{9}
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 0

	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != 9 {
		t.Fatalf("stored value aliases the caller's slice")
	}
}

func TestMemDBOverwrite(t *testing.T) {
	db := NewMemDB()
	if err := db.Put([]byte("k"), []byte{1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put([]byte("k"), []byte{2}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != 2 {
		t.Fatalf("overwrite did not take effect")
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
}
