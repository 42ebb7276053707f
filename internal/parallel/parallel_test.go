package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversEveryIndexOnce(t *testing.T) {
	cfgs := []Config{
		{Enabled: false},
		{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
		{Enabled: true, NumWorkers: 3, MinChunkSize: 100},
	}

	for _, cfg := range cfgs {
		const n = 1000
		counts := make([]int32, n)
		For(n, func(i int) {
			atomic.AddInt32(&counts[i], 1)
		}, cfg)

		for i, c := range counts {
			if c != 1 {
				t.Fatalf("index %d visited %d times with cfg %+v", i, c, cfg)
			}
		}
	}
}

func TestForZeroItems(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	if called {
		t.Error("f should not run for n == 0")
	}
}

func TestFor2DCoversGrid(t *testing.T) {
	const nx, ny = 7, 5
	var counts [nx][ny]int32
	For2D(nx, ny, func(x, y int) {
		atomic.AddInt32(&counts[x][y], 1)
	}, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			if counts[x][y] != 1 {
				t.Fatalf("cell (%d,%d) visited %d times", x, y, counts[x][y])
			}
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if cfg.MinChunkSize < 1 {
		t.Errorf("MinChunkSize = %d, want >= 1", cfg.MinChunkSize)
	}
}
