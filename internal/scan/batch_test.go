package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

func TestNewBatchRunner(t *testing.T) {
	t.Parallel()

	factory := func(context.Context, string) (*Task, error) { return NewTask(nil), nil }

	tests := []struct {
		name string
		opts []BatchOption
		want int
	}{
		{"default concurrency", nil, DefaultBatchConcurrency},
		{"custom concurrency", []BatchOption{WithConcurrency(2)}, 2},
		{"non-positive keeps default", []BatchOption{WithConcurrency(0)}, DefaultBatchConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewBatchRunner(factory, tt.opts...)
			if b.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", b.concurrency, tt.want)
			}
			if b.logger == nil {
				t.Error("logger not defaulted")
			}
		})
	}
}

func TestBatchRunnerRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)

	errFactory := errors.New("no scan record")
	var created atomic.Int64
	factory := func(_ context.Context, seed string) (*Task, error) {
		if seed == "https://refused.test/" {
			return nil, errFactory
		}
		n := created.Add(1)
		return NewTask(nil, WithLogger(quietLogger()), WithScanID(strconv.FormatInt(n, 10))), nil
	}

	seeds := []string{srv.URL + "/a", "https://refused.test/", srv.URL + "/bad", srv.URL + "/b"}
	cfgFor := func(seed string) config.ScanConfiguration {
		cfg := newTestConfig()
		if seed == srv.URL+"/bad" {
			cfg.MaxPages = 0
		}
		return cfg
	}

	b := NewBatchRunner(factory, WithConcurrency(2), WithBatchLogger(quietLogger()))
	results := b.Run(context.Background(), seeds, cfgFor)

	if len(results) != len(seeds) {
		t.Fatalf("got %d results, want %d", len(results), len(seeds))
	}
	for i, res := range results {
		if res.Seed != seeds[i] {
			t.Errorf("results[%d].Seed = %q, want %q", i, res.Seed, seeds[i])
		}
	}

	for _, i := range []int{0, 3} {
		res := results[i]
		if res.Err != nil || res.Stats.URLsCrawled != 1 {
			t.Errorf("results[%d] = err %v stats %+v", i, res.Err, res.Stats)
		}
		if res.Summary == nil || res.Summary.Status != model.ScanStatusCompleted {
			t.Errorf("results[%d] summary = %+v", i, res.Summary)
		}
	}

	if !errors.Is(results[1].Err, errFactory) || results[1].Summary != nil {
		t.Errorf("factory failure result = %+v", results[1])
	}
	if !errors.Is(results[2].Err, ErrInvalidConfiguration) || results[2].Summary.Status != model.ScanStatusFailed {
		t.Errorf("invalid config result = %+v", results[2])
	}
}

func TestBatchRunnerCancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	factory := func(context.Context, string) (*Task, error) {
		calls.Add(1)
		return NewTask(nil), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatchRunner(factory, WithBatchLogger(quietLogger()))
	results := b.Run(ctx, []string{"https://a.test/", "https://b.test/"}, func(string) config.ScanConfiguration {
		return newTestConfig()
	})

	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("result %q err = %v, want context.Canceled", res.Seed, res.Err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("factory called %d times after cancellation", calls.Load())
	}
}

func TestBatchRunnerStop(t *testing.T) {
	t.Parallel()

	factory := func(context.Context, string) (*Task, error) {
		return NewTask(nil, WithLogger(quietLogger())), nil
	}
	b := NewBatchRunner(factory, WithBatchLogger(quietLogger()))
	b.Stop()

	results := b.Run(context.Background(), []string{"https://unreachable.invalid/"}, func(string) config.ScanConfiguration {
		return newTestConfig()
	})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Summary.Status != model.ScanStatusCancelled || results[0].Stats.URLsCrawled != 0 {
		t.Errorf("result after Stop = %+v", results[0])
	}
}
