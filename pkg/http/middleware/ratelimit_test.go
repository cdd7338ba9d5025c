package middleware

import (
	"testing"
	"time"
)

func TestLimiter_AllowWithinCapacity(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 5; i++ {
		if !l.Allow("a", 5, 1) {
			t.Fatalf("request %d within capacity must be allowed", i+1)
		}
	}
	if l.Allow("a", 5, 1) {
		t.Error("request beyond capacity must be rejected")
	}
}

func TestLimiter_KeysIndependent(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 3; i++ {
		l.Allow("a", 3, 1)
	}
	if !l.Allow("b", 3, 1) {
		t.Error("exhausting one key must not affect another")
	}
}

func TestLimiter_Refills(t *testing.T) {
	l := NewLimiter()
	if !l.Allow("a", 1, 100) {
		t.Fatal("first request must pass")
	}
	if l.Allow("a", 1, 100) {
		t.Fatal("bucket empty, must reject")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("a", 1, 100) {
		t.Error("bucket should have refilled")
	}
}
