package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type summary struct{ Name string }

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	c.Set("a", 1, 0)
	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("expected cached value, got %v %v", v, ok)
	}
	c.Set("b", 2, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected expiry")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (*summary, error) {
		calls++
		return &summary{Name: "x"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, c, "k", load)
		if err != nil || v.Name != "x" {
			t.Fatalf("unexpected result %v %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one load, got %d", calls)
	}
}

func TestGetOrLoad_DoesNotCacheMissesOrErrors(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()

	calls := 0
	missing := func(context.Context) (*summary, error) {
		calls++
		return nil, nil
	}
	GetOrLoad(ctx, c, "k", missing)
	GetOrLoad(ctx, c, "k", missing)
	if calls != 2 {
		t.Fatalf("nil results must not be cached, loads=%d", calls)
	}

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, c, "e", func(context.Context) (*summary, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected error to propagate, got %v", err)
	}
	if _, ok := c.Get("e"); ok {
		t.Fatalf("errors must not be cached")
	}
}

func TestGetOrLoad_NilCache(t *testing.T) {
	v, err := GetOrLoad(context.Background(), nil, "k", func(context.Context) (*summary, error) {
		return &summary{Name: "direct"}, nil
	})
	if err != nil || v.Name != "direct" {
		t.Fatalf("unexpected %v %v", v, err)
	}
}
