package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestNew_invalidSpec(t *testing.T) {
	if _, err := New("bad", "not a cron", func(context.Context) {}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestNext(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	tests := []struct {
		spec string
		want time.Time
	}{
		{"@hourly", time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"30 9 * * *", time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)},
		{"*/20 * * * *", time.Date(2025, 3, 1, 10, 20, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		s, err := New("job", tt.spec, func(context.Context) {})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.spec, err)
		}
		if got := s.Next(base); !got.Equal(tt.want) {
			t.Errorf("Next(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestRun_firesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runs := 0
	s, err := New("job", "@hourly", func(context.Context) {
		runs++
		if runs == 3 {
			cancel()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	var waits []time.Duration
	s.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
	for _, d := range waits {
		if d <= 0 || d > time.Hour {
			t.Errorf("wait %v outside (0, 1h]", d)
		}
	}
}

func TestRun_nilLogger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := New("job", "@daily", func(context.Context) { cancel() }, WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	s.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	s.Run(ctx)
}
