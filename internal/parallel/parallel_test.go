package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForVisitsEveryIndex(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("visited %d of %d indices", counter, n)
	}
}

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}

	order := make([]int, 0, 100)
	For(100, func(i int) {
		order = append(order, i)
	}, cfg)

	if len(order) != 100 {
		t.Fatalf("visited %d indices", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("sequential fallback out of order at %d: %d", i, got)
		}
	}
}

func TestForBelowChunkSizeRunsSequentially(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 64

	order := make([]int, 0, 10)
	For(10, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, got := range order {
		if got != i {
			t.Fatalf("expected in-order execution below chunk size, got %d at %d", got, i)
		}
	}
}

func TestForBatchCoversGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1

	batch, heads := 4, 8
	var visited [4][8]atomic.Bool

	ForBatch(batch, heads, func(b, h int) {
		visited[b][h].Store(true)
	}, cfg)

	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			if !visited[b][h].Load() {
				t.Errorf("cell [%d][%d] never visited", b, h)
			}
		}
	}
}
