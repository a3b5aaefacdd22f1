package juicer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func noDelays() func() {
	origRetrySleep := retrySleep
	retrySleep = 0
	return func() {
		retrySleep = origRetrySleep
	}
}

type retryable struct {
	mu          sync.Mutex
	open        bool
	hasClosed   bool
	startedChan chan struct{}
	stopChan    chan error
}

func (r *retryable) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	return nil
}

func (r *retryable) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.hasClosed = true
	return nil
}

func (r *retryable) Start(ctx context.Context) error {
	r.startedChan <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-r.stopChan:
		return err
	}
}

func (r *retryable) Name() string {
	return "retryable-test"
}

func (r *retryable) state() (open, hasClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open, r.hasClosed
}

func TestRetry(t *testing.T) {
	defer noDelays()()
	r := retryable{
		startedChan: make(chan struct{}),
		stopChan:    make(chan error),
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Equal(t, context.Canceled, retry(ctx, &r))
		wg.Done()
	}()
	// wait for start to be called
	<-r.startedChan
	open, hasClosed := r.state()
	assert.True(t, open)
	assert.False(t, hasClosed)

	// trigger start to exit with no error
	r.stopChan <- nil
	<-r.startedChan
	open, hasClosed = r.state()
	assert.True(t, open)
	assert.False(t, hasClosed)

	// emulate an error being returned from start
	r.stopChan <- errors.New("fake error")
	<-r.startedChan
	// check that it was closed and re-opened
	open, hasClosed = r.state()
	assert.True(t, hasClosed)
	assert.True(t, open)

	cancel()
	wg.Wait()
	open, _ = r.state()
	assert.False(t, open, "closed once the context is done")
}

func TestRetryCancelDuringBackoff(t *testing.T) {
	origRetrySleep := retrySleep
	retrySleep = time.Hour
	defer func() {
		retrySleep = origRetrySleep
	}()
	r := retryable{
		startedChan: make(chan struct{}),
		stopChan:    make(chan error),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- retry(ctx, &r)
	}()
	<-r.startedChan
	// start fails, so retry backs off for an hour
	r.stopChan <- errors.New("fake error")
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("retry did not return during back-off")
	}
	open, hasClosed := r.state()
	assert.False(t, open)
	assert.True(t, hasClosed)
}
