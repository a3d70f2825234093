package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for absent key, got %v", err)
	}

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v; want v, nil", got, err)
	}

	// Stored bytes must be isolated from caller mutation.
	src := []byte("orig")
	_ = m.Set(ctx, "iso", src, time.Minute)
	src[0] = 'X'
	got, _ = m.Get(ctx, "iso")
	if string(got) != "orig" {
		t.Fatalf("store aliased caller slice: %q", got)
	}
	got[0] = 'Y'
	got2, _ := m.Get(ctx, "iso")
	if string(got2) != "orig" {
		t.Fatalf("reader mutated stored slice: %q", got2)
	}

	if err := m.Del(ctx, "k", "never-existed"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_ = m.Set(ctx, "short", []byte("v"), 15*time.Millisecond)
	_ = m.Set(ctx, "forever", []byte("v"), 0) // non-positive ttl: no expiry

	if _, err := m.Get(ctx, "short"); err != nil {
		t.Fatalf("fresh entry must be readable: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := m.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry must miss, got %v", err)
	}
	if _, err := m.Get(ctx, "forever"); err != nil {
		t.Fatalf("no-expiry entry must survive: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", m.Len())
	}
}

func TestMemoryStore_DelPattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	keys := []string{
		"es::product::list::aaa",
		"es::product::list::bbb",
		"es::product::id::p1",
		"es::order::list::ccc",
	}
	for _, k := range keys {
		_ = m.Set(ctx, k, []byte("v"), time.Minute)
	}

	n, err := m.DelPattern(ctx, "es::product::list::*")
	if err != nil {
		t.Fatalf("delpattern: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d keys; want 2", n)
	}
	for _, k := range []string{"es::product::id::p1", "es::order::list::ccc"} {
		if _, err := m.Get(ctx, k); err != nil {
			t.Fatalf("unrelated key %q was dropped: %v", k, err)
		}
	}
	if _, err := m.Get(ctx, "es::product::list::aaa"); !errors.Is(err, ErrMiss) {
		t.Fatalf("pattern-matched key survived")
	}
}
