package locks

import (
	"testing"
	"time"
)

func TestMap_TryAcquire_BlocksUntilExpiry(t *testing.T) {
	m := New()

	if !m.TryAcquire("topic_create:1", 20*time.Millisecond) {
		t.Fatalf("expected first acquire to succeed")
	}
	if m.TryAcquire("topic_create:1", 20*time.Millisecond) {
		t.Fatalf("expected second acquire to fail while first is held")
	}

	time.Sleep(30 * time.Millisecond)

	if !m.TryAcquire("topic_create:1", 20*time.Millisecond) {
		t.Fatalf("expected acquire to succeed after expiry")
	}
}

func TestMap_TryAcquire_IndependentKeys(t *testing.T) {
	m := New()

	if !m.TryAcquire("inbox:1", time.Second) {
		t.Fatalf("expected acquire for key 1")
	}
	if !m.TryAcquire("inbox:2", time.Second) {
		t.Fatalf("expected acquire for key 2 to be independent of key 1")
	}
}

func TestMap_Release(t *testing.T) {
	m := New()

	if !m.TryAcquire("topic_create:9", time.Minute) {
		t.Fatalf("expected first acquire to succeed")
	}
	m.Release("topic_create:9")
	if !m.TryAcquire("topic_create:9", time.Minute) {
		t.Fatalf("expected acquire to succeed immediately after release")
	}
}
