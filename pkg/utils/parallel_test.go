package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapOrdered_preservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out, err := MapOrdered(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range items {
		if out[i] != n*10 {
			t.Errorf("out[%d] = %d, want %d", i, out[i], n*10)
		}
	}
}

func TestMapOrdered_boundsConcurrency(t *testing.T) {
	var active, peak int32
	items := make([]int, 12)
	_, err := MapOrdered(context.Background(), items, 3, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestMapOrdered_error(t *testing.T) {
	boom := errors.New("boom")
	_, err := MapOrdered(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestMapOrdered_empty(t *testing.T) {
	out, err := MapOrdered(context.Background(), []string(nil), 3, func(_ context.Context, s string) (string, error) {
		return s, nil
	})
	if err != nil || len(out) != 0 {
		t.Errorf("got %v, %v", out, err)
	}
}
