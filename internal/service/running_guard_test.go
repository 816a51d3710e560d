package service

import (
	"context"
	"testing"
	"time"
)

func TestJobGuard_OnePerKey(t *testing.T) {
	var g jobGuard

	if !g.begin("floor:1") {
		t.Fatal("first begin should succeed")
	}
	if g.begin("floor:1") {
		t.Fatal("second begin for the same floor should fail")
	}
	if !g.begin("backup") {
		t.Fatal("a different key should not be blocked")
	}
	g.end("floor:1")
	g.end("backup")

	if !g.begin("floor:1") {
		t.Fatal("begin should succeed after end")
	}
	g.end("floor:1")
}

func TestJobGuard_WaitReturnsWhenIdle(t *testing.T) {
	var g jobGuard
	g.begin("backup")

	done := make(chan struct{})
	go func() {
		g.wait(context.Background())
		close(done)
	}()
	time.AfterFunc(20*time.Millisecond, func() { g.end("backup") })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after the job ended")
	}
}

func TestJobGuard_WaitHonoursContext(t *testing.T) {
	var g jobGuard
	g.begin("floor:2")
	defer g.end("floor:2")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	g.wait(ctx)
	if time.Since(start) > time.Second {
		t.Fatal("wait ignored the cancelled context")
	}
}
