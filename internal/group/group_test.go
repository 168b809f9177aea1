package group_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/devenvgo/devenv/internal/group"
	"github.com/devenvgo/devenv/pkg/logger"
)

func TestSafeGroup_ReturnsFirstError(t *testing.T) {
	g, ctx := group.WithContext(context.Background(), logger.NewNopLogger())
	want := errors.New("search failed")

	g.Go(func() error { return want })
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := g.Wait(); !errors.Is(err, want) {
		t.Fatalf("Wait() = %v, want %v", err, want)
	}
}

func TestSafeGroup_RecoversPanic(t *testing.T) {
	g, _ := group.WithContext(context.Background(), nil)

	g.Go(func() error { panic("boom") })

	err := g.Wait()
	if err == nil || !strings.Contains(err.Error(), "goroutine panic: boom") {
		t.Fatalf("expected panic error, got %v", err)
	}
}

func TestSafeGroup_Limit(t *testing.T) {
	g, _ := group.WithContext(context.Background(), nil)
	g.SetLimit(2)

	var running, peak int32
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit", peak)
	}
}
