package repository

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryUsage_RejectsOverLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsageRepository()

	for i := 1; i <= 5; i++ {
		count, accepted, err := repo.Increment(ctx, "u@example.com", "2026-08", "search", 1, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !accepted || count != i {
			t.Fatalf("increment %d: expected accepted with count %d, got accepted=%v count=%d", i, i, accepted, count)
		}
	}

	count, accepted, err := repo.Increment(ctx, "u@example.com", "2026-08", "search", 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted {
		t.Fatalf("expected sixth increment to be rejected")
	}
	if count != 5 {
		t.Fatalf("expected counter pinned at 5, got %d", count)
	}
}

func TestMemoryUsage_IsolatesKindsAndPeriods(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsageRepository()

	if _, accepted, _ := repo.Increment(ctx, "u@example.com", "2026-08", "search", 5, 5); !accepted {
		t.Fatalf("expected bulk increment within limit")
	}
	if _, accepted, _ := repo.Increment(ctx, "u@example.com", "2026-08", "reveal", 1, 2); !accepted {
		t.Fatalf("expected reveal counter independent of search counter")
	}
	if _, accepted, _ := repo.Increment(ctx, "u@example.com", "2026-09", "search", 1, 5); !accepted {
		t.Fatalf("expected fresh period to start at zero")
	}
}

func TestMemoryUsage_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsageRepository()

	var wg sync.WaitGroup
	accepted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, _ := repo.Increment(ctx, "u@example.com", "2026-08", "search", 1, 10)
			accepted <- ok
		}()
	}
	wg.Wait()
	close(accepted)

	var wins int
	for ok := range accepted {
		if ok {
			wins++
		}
	}
	if wins != 10 {
		t.Fatalf("expected exactly 10 accepted increments, got %d", wins)
	}
}
