package cache_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DMarby/thumbs/internal/cache"
	"github.com/DMarby/thumbs/internal/cache/memory"
	"github.com/DMarby/thumbs/internal/cache/mock"
	"github.com/DMarby/thumbs/internal/logger"
	"github.com/DMarby/thumbs/internal/tracing"
	"go.uber.org/zap"
)

var mockLoaderFunc cache.LoaderFunc = func(ctx context.Context, key string) (data []byte, err error) {
	if key == "loaderror" {
		return nil, fmt.Errorf("loaderror")
	}

	return []byte(key), nil
}

func TestAuto(t *testing.T) {
	log := logger.New(zap.ErrorLevel)
	defer log.Sync()

	auto := &cache.Auto{
		Tracer:   tracing.NewNoop(log, "test"),
		Provider: &mock.Provider{},
	}

	tests := []struct {
		Key           string
		ExpectedData  string
		ExpectedError error
	}{
		{"foo", "foo", nil},
		{"notfound", "notfound", nil},
		{"error", "", fmt.Errorf("error")},
		{"loaderror", "", fmt.Errorf("loaderror")},
		{"seterror", "", fmt.Errorf("seterror")},
	}

	for _, test := range tests {
		data, err := auto.Get(context.Background(), test.Key, mockLoaderFunc)
		if err != nil {
			if test.ExpectedError == nil {
				t.Errorf("%s: %s", test.Key, err)
				continue
			}

			if test.ExpectedError.Error() != err.Error() {
				t.Errorf("%s: wrong error: %s", test.Key, err)
			}

			continue
		}

		if test.ExpectedError != nil {
			t.Errorf("%s: expected error %s", test.Key, test.ExpectedError)
			continue
		}

		if string(data) != test.ExpectedData {
			t.Errorf("%s: wrong data", test.Key)
		}
	}
}

func setupAuto(t *testing.T) (*cache.Auto, *memory.Provider) {
	log := logger.New(zap.ErrorLevel)
	t.Cleanup(func() { log.Sync() })

	provider, err := memory.New(memory.DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}

	return &cache.Auto{
		Tracer:   tracing.NewNoop(log, "test"),
		Provider: provider,
	}, provider
}

func TestAutoStoresLoadedData(t *testing.T) {
	auto, provider := setupAuto(t)

	var calls int32
	loader := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("data"), nil
	}

	for i := 0; i < 3; i++ {
		data, err := auto.Get(context.Background(), "key", loader)
		if err != nil {
			t.Fatal(err)
		}

		if string(data) != "data" {
			t.Fatalf("wrong data %s", data)
		}
	}

	if calls != 1 {
		t.Errorf("loader called %d times", calls)
	}

	if !provider.Contains("key") {
		t.Error("loaded data wasn't stored")
	}
}

func TestAutoDoesNotCacheFailures(t *testing.T) {
	auto, provider := setupAuto(t)

	var calls int32
	loader := func(ctx context.Context, key string) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, fmt.Errorf("transient")
		}
		return []byte("data"), nil
	}

	if _, err := auto.Get(context.Background(), "key", loader); err == nil {
		t.Fatal("expected an error")
	}

	if provider.Contains("key") {
		t.Fatal("failure was cached")
	}

	data, err := auto.Get(context.Background(), "key", loader)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "data" || calls != 2 {
		t.Errorf("failed load wasn't retried: %s, %d calls", data, calls)
	}
}

func TestAutoDeduplicatesConcurrentLoads(t *testing.T) {
	auto, _ := setupAuto(t)

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("data"), nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = auto.Get(context.Background(), "key", loader)
		}(i)
	}

	// Give the callers time to join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("loader called %d times", calls)
	}

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: %s", i, errs[i])
			continue
		}

		if string(results[i]) != "data" {
			t.Errorf("caller %d: wrong data %s", i, results[i])
		}
	}
}

func TestAutoCanceledCallerStillPopulatesCache(t *testing.T) {
	auto, provider := setupAuto(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	loader := func(ctx context.Context, key string) ([]byte, error) {
		defer close(done)
		close(started)
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []byte("data"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		_, err := auto.Get(ctx, "key", loader)
		errChan <- err
	}()

	<-started
	cancel()

	if err := <-errChan; err != context.Canceled {
		t.Fatalf("wrong error %v", err)
	}

	close(release)
	<-done

	// The provider is written after the loader returns
	deadline := time.Now().Add(time.Second)
	for !provider.Contains("key") {
		if time.Now().After(deadline) {
			t.Fatal("abandoned load wasn't stored")
		}
		time.Sleep(time.Millisecond)
	}
}
