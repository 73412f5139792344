package storage

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bodies.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueDequeue(t *testing.T) {
	s := newTestStore(t)
	sid, err := s.Enqueue([]byte("hello bundle"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if sid == 0 {
		t.Fatal("Enqueue returned sid 0, must be nonzero to avoid bundle.SIDVacant")
	}
	body, err := s.Dequeue(sid)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if string(body) != "hello bundle" {
		t.Fatalf("Dequeue body = %q, want %q", body, "hello bundle")
	}
	if _, err := s.Dequeue(sid); err != ErrNotFound {
		t.Fatalf("second Dequeue = %v, want ErrNotFound", err)
	}
}

func TestDequeueMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Dequeue(999); err != ErrNotFound {
		t.Fatalf("Dequeue(999) = %v, want ErrNotFound", err)
	}
}

func TestDeleteWithoutDequeue(t *testing.T) {
	s := newTestStore(t)
	sid, err := s.Enqueue([]byte("abandoned"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := s.Delete(sid); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(sid); err != ErrNotFound {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestEnqueueAssignsDistinctSIDs(t *testing.T) {
	s := newTestStore(t)
	sid1, _ := s.Enqueue([]byte("a"))
	sid2, _ := s.Enqueue([]byte("b"))
	if sid1 == sid2 {
		t.Fatalf("Enqueue assigned duplicate sid %d twice", sid1)
	}
}
