package locks

import (
	"testing"
	"time"
)

func TestUpdateDedup_Seen(t *testing.T) {
	d := NewUpdateDedup(20 * time.Millisecond)

	if d.Seen(42) {
		t.Fatalf("expected first sighting of update 42 to report unseen")
	}
	if !d.Seen(42) {
		t.Fatalf("expected redelivery of update 42 to report seen")
	}
	if d.Seen(43) {
		t.Fatalf("expected a different update id to report unseen")
	}

	time.Sleep(30 * time.Millisecond)

	if d.Seen(42) {
		t.Fatalf("expected update 42 to be forgotten after its TTL elapsed")
	}
}
