package par

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRanges(t *testing.T) {
	for _, tc := range []struct {
		workers, n int
		want       []Range
	}{
		{4, 0, nil},
		{4, 2, []Range{{0, 0, 1}, {1, 1, 2}}},
		{3, 10, []Range{{0, 0, 4}, {1, 4, 7}, {2, 7, 10}}},
		{1, 5, []Range{{0, 0, 5}}},
	} {
		if d := cmp.Diff(tc.want, Ranges(tc.workers, tc.n)); d != "" {
			t.Errorf("Ranges(%d, %d) mismatch (-want +got):\n%s", tc.workers, tc.n, d)
		}
	}
}

func TestFor(t *testing.T) {
	const n = 1000
	seen := make([]int, n)
	err := For(7, n, func(r Range) error {
		for i := r.Lo; i < r.Hi; i++ {
			seen[i]++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}

	boom := errors.New("boom")
	err = For(4, 8, func(r Range) error {
		if r.Worker == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("For error = %v, want %v", err, boom)
	}
}

func TestEach(t *testing.T) {
	const n = 500
	var sum atomic.Int64
	seen := make([]atomic.Int32, n)
	err := Each(5, n, func(worker, i int) error {
		if worker < 0 || worker >= 5 {
			t.Errorf("worker %d out of range", worker)
		}
		seen[i].Inc()
		sum.Add(int64(i))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sum.Load(), int64(n*(n-1)/2); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
	for i := range seen {
		if seen[i].Load() != 1 {
			t.Fatalf("index %d visited %d times", i, seen[i].Load())
		}
	}

	boom := errors.New("boom")
	if err := Each(3, 100, func(_, i int) error {
		if i == 42 {
			return boom
		}
		return nil
	}); !errors.Is(err, boom) {
		t.Errorf("Each error = %v, want %v", err, boom)
	}
	if err := Each(3, 0, func(int, int) error { return boom }); err != nil {
		t.Errorf("Each over nothing = %v", err)
	}
}
