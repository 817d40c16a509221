package store

import (
	"errors"
	"testing"

	"github.com/ytget/vidfetch/errs"
)

func TestMemory_SetGetRemove(t *testing.T) {
	m := NewMemory(0)
	if _, ok, err := m.GetItem("k"); ok || err != nil {
		t.Fatalf("expected empty store miss, got ok=%v err=%v", ok, err)
	}
	if err := m.SetItem("k", "v1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := m.SetItem("k", "v2"); err != nil {
		t.Fatalf("SetItem overwrite: %v", err)
	}
	got, ok, err := m.GetItem("k")
	if err != nil || !ok || got != "v2" {
		t.Fatalf("GetItem = %q %v %v, want v2", got, ok, err)
	}
	if err := m.RemoveItem("k"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := m.RemoveItem("k"); err != nil {
		t.Fatalf("second RemoveItem: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty store, got %d", m.Len())
	}
}

func TestMemory_Quota(t *testing.T) {
	m := NewMemory(10)
	if err := m.SetItem("ab", "cdef"); err != nil { // 6 bytes
		t.Fatalf("SetItem: %v", err)
	}
	if err := m.SetItem("gh", "ijklmn"); !errors.Is(err, errs.ErrQuotaExceeded) { // +8
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// Overwriting the same key only counts the difference.
	if err := m.SetItem("ab", "cdefghij"); err != nil { // 10 bytes
		t.Fatalf("overwrite within quota: %v", err)
	}
	if err := m.RemoveItem("ab"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetItem("gh", "ijklmn"); err != nil {
		t.Fatalf("quota should be released after remove: %v", err)
	}
}

func TestMemory_Unavailable(t *testing.T) {
	m := NewMemory(0)
	m.SetUnavailable(true)
	if _, _, err := m.GetItem("k"); !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Errorf("GetItem err = %v", err)
	}
	if err := m.SetItem("k", "v"); !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Errorf("SetItem err = %v", err)
	}
	if err := m.RemoveItem("k"); !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Errorf("RemoveItem err = %v", err)
	}
	if _, err := m.Keys(); !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Errorf("Keys err = %v", err)
	}
}

func TestMemory_KeysSnapshot(t *testing.T) {
	m := NewMemory(0)
	for _, k := range []string{"b", "a", "c"} {
		_ = m.SetItem(k, k)
	}
	keys, err := m.Keys()
	if err != nil {
		t.Fatal(err)
	}
	// Mutating the store after the snapshot must not change it.
	_ = m.SetItem("d", "d")
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
