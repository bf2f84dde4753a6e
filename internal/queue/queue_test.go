package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/DMarby/thumbs/internal/queue"
)

func setupQueue(workers int, f queue.HandlerFunc[string, string]) (*queue.Queue[string, string], context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	workerQueue := queue.New(ctx, workers, f)
	go workerQueue.Run()
	return workerQueue, cancel
}

func TestProcess(t *testing.T) {
	workerQueue, cancel := setupQueue(5, func(ctx context.Context, data string) (string, error) {
		return data, nil
	})

	defer cancel()

	data, err := workerQueue.Process(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}

	if data != "test" {
		t.Fatalf("wrong data %s", data)
	}
}

func TestShutdown(t *testing.T) {
	workerQueue, cancel := setupQueue(5, func(ctx context.Context, data string) (string, error) {
		return "", nil
	})

	cancel()

	_, err := workerQueue.Process(context.Background(), "test")
	if err != queue.ErrShutdown {
		t.Fatalf("wrong error %v", err)
	}
}

func TestTaskWithError(t *testing.T) {
	errorQueue, cancel := setupQueue(5, func(ctx context.Context, data string) (string, error) {
		return "", fmt.Errorf("custom error")
	})

	defer cancel()
	_, err := errorQueue.Process(context.Background(), "test")

	if err == nil || err.Error() != "custom error" {
		t.Fatal("Invalid error")
	}
}

func TestTaskWithCancelledContext(t *testing.T) {
	errorQueue, cancel := setupQueue(5, func(ctx context.Context, data string) (string, error) {
		return "", fmt.Errorf("custom error")
	})

	defer cancel()

	ctx, ctxCancel := context.WithCancel(context.Background())
	ctxCancel()

	_, err := errorQueue.Process(ctx, "test")

	if err == nil || err.Error() != "context canceled" {
		t.Fatal("Invalid error")
	}
}

func TestTaskPanic(t *testing.T) {
	panicQueue, cancel := setupQueue(1, func(ctx context.Context, data string) (string, error) {
		if data == "panic" {
			panic("bad input")
		}
		return data, nil
	})

	defer cancel()

	_, err := panicQueue.Process(context.Background(), "panic")
	if !errors.Is(err, queue.ErrTaskPanicked) {
		t.Fatalf("wrong error %v", err)
	}

	// The worker survives the panic
	data, err := panicQueue.Process(context.Background(), "test")
	if err != nil || data != "test" {
		t.Fatalf("worker didn't recover: %s, %v", data, err)
	}
}

func TestWorkerLimit(t *testing.T) {
	const workers = 2

	var running, maxRunning int32
	workerQueue, cancel := setupQueue(workers, func(ctx context.Context, data string) (string, error) {
		current := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)

		for {
			seen := atomic.LoadInt32(&maxRunning)
			if current <= seen || atomic.CompareAndSwapInt32(&maxRunning, seen, current) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)
		return data, nil
	})

	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := workerQueue.Process(context.Background(), "test"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if maxRunning > workers {
		t.Errorf("%d jobs ran concurrently", maxRunning)
	}
}
