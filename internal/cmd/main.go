package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Http server timeouts, the handler timeout leaves room for writing a rendered thumbnail
const (
	ReadTimeout    = 5 * time.Second
	WriteTimeout   = time.Minute
	HandlerTimeout = 45 * time.Second
)

// ErrCanceled is returned by WaitForInterrupt when the context ends first
var ErrCanceled = errors.New("canceled")

// WaitForInterrupt blocks until SIGINT/SIGTERM is received or the context is done
func WaitForInterrupt(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-ctx.Done():
		return ErrCanceled
	}
}
