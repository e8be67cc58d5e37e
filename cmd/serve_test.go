package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeCron) Stop() context.Context {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return context.Background()
}

type fakeHTTP struct {
	listenCalled chan struct{}
	listenErr    error
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_StartsCronAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", scheduler, cronEngine, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	assert.True(t, cronEngine.started)
	assert.True(t, cronEngine.stopped)
}

func TestRunWithComponents_ScheduleErrorSkipsServer(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("bad cron")}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	err := runWithComponents(context.Background(), "127.0.0.1:0", scheduler, cronEngine, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad cron")
	assert.False(t, cronEngine.started)
}

func TestRunWithComponents_ListenErrorStopsCron(t *testing.T) {
	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")

	err := runWithComponents(context.Background(), "127.0.0.1:0", scheduler, cronEngine, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.True(t, cronEngine.stopped)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0:09", formatSeconds(9))
	assert.Equal(t, "1:01", formatSeconds(60.6))
	assert.Equal(t, "1:00:00", formatSeconds(3600))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Size"}, [][]string{{"base", "74 MB"}, {"tiny"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "base")
	assert.Contains(t, out, "74 MB")
	assert.Contains(t, out, "tiny")
	assert.Empty(t, renderTable(nil, nil, nil))
}
