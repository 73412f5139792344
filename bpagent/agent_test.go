package bpagent

import (
	"testing"

	"github.com/glan6388/bplib/internal/config"
	"github.com/glan6388/bplib/routetable"
)

// memStore is a minimal in-memory storage.Service for tests, standing in
// for storage.SQLiteStore without touching disk.
type memStore struct {
	next   uint64
	bodies map[uint64][]byte
}

func newMemStore() *memStore {
	return &memStore{next: 1, bodies: make(map[uint64][]byte)}
}

func (m *memStore) Enqueue(body []byte) (uint64, error) {
	sid := m.next
	m.next++
	cp := append([]byte(nil), body...)
	m.bodies[sid] = cp
	return sid, nil
}

func (m *memStore) Dequeue(sid uint64) ([]byte, error) {
	b, ok := m.bodies[sid]
	if !ok {
		return nil, errNotFound
	}
	delete(m.bodies, sid)
	return b, nil
}

func (m *memStore) Delete(sid uint64) error {
	if _, ok := m.bodies[sid]; !ok {
		return errNotFound
	}
	delete(m.bodies, sid)
	return nil
}

func (m *memStore) Close() error { return nil }

var errNotFound = &memStoreErr{"memstore: not found"}

type memStoreErr struct{ s string }

func (e *memStoreErr) Error() string { return e.s }

func encodeFrame(cid uint64, lifetime uint32, dest string) []byte {
	headerLen := 14
	buf := make([]byte, headerLen+len(dest))
	for i := 0; i < 8; i++ {
		buf[i] = byte(cid >> (8 * i))
	}
	for i := 0; i < 4; i++ {
		buf[8+i] = byte(lifetime >> (8 * i))
	}
	buf[12] = byte(len(dest))
	buf[13] = byte(len(dest) >> 8)
	copy(buf[headerLen:], dest)
	return buf
}

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	cfg := config.Default()
	cfg.ActiveTableSize = 8
	cfg.RetxBucketCount = 128
	routes := routetable.New(4)
	a, err := New(cfg, newMemStore(), routes)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestReceiveEnrollsInActiveTable(t *testing.T) {
	a := newTestAgent(t)

	frame := encodeFrame(42, 100, "dtn://dest/")
	cid, err := a.Receive(frame)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if cid != 42 {
		t.Fatalf("Receive() cid = %d, want 42", cid)
	}
	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", a.Count())
	}
}

func TestDeliverRemovesFromActiveTable(t *testing.T) {
	a := newTestAgent(t)
	frame := encodeFrame(7, 100, "dtn://dest/")
	if _, err := a.Receive(frame); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := a.Deliver(7); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if a.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after Deliver", a.Count())
	}
}

func TestForwardUsesRouteTable(t *testing.T) {
	a := newTestAgent(t)
	if err := a.routes.Put("dtn://gateway/", 5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	hop, err := a.Forward("dtn://gateway/")
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if hop != 5 {
		t.Fatalf("Forward() = %d, want 5", hop)
	}
}

func TestForwardNoRoute(t *testing.T) {
	a := newTestAgent(t)
	if _, err := a.Forward("dtn://nowhere/"); err != ErrNoRoute {
		t.Fatalf("Forward() = %v, want ErrNoRoute", err)
	}
}

func TestSnapshotReportsCounts(t *testing.T) {
	a := newTestAgent(t)
	frame := encodeFrame(1, 50, "dtn://x/")
	if _, err := a.Receive(frame); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	snap := a.Snapshot()
	if snap.ActiveCount != 1 {
		t.Fatalf("Snapshot().ActiveCount = %d, want 1", snap.ActiveCount)
	}
}
