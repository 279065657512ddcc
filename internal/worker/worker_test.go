package worker

import (
	"context"
	"testing"
	"time"

	"stock-service/internal/service"

	"github.com/stretchr/testify/assert"
)

type fakeSync struct {
	err       error
	next      time.Time
	hasNext   bool
	refreshed int
	flushed   int
}

func (f *fakeSync) Refresh(ctx context.Context, force bool) error {
	f.refreshed++
	return f.err
}

func (f *fakeSync) FlushDeferred(ctx context.Context) bool {
	f.flushed++
	return false
}

func (f *fakeSync) NextSyncAt() (time.Time, bool) {
	return f.next, f.hasNext
}

func TestPollOnceUsesServerDeclaredNextSync(t *testing.T) {
	sync := &fakeSync{next: time.Now().Add(10 * time.Minute), hasNext: true}
	p := NewSyncPoller(sync, 5*time.Minute)

	wait := p.pollOnce(context.Background())
	assert.Equal(t, 1, sync.refreshed)
	assert.Greater(t, wait, 9*time.Minute)
	assert.LessOrEqual(t, wait, 10*time.Minute)
}

func TestPollOnceFallsBackToInterval(t *testing.T) {
	sync := &fakeSync{}
	p := NewSyncPoller(sync, 5*time.Minute)

	assert.Equal(t, 5*time.Minute, p.pollOnce(context.Background()))

	// a next-sync in the past also falls back
	sync.next = time.Now().Add(-time.Minute)
	sync.hasNext = true
	assert.Equal(t, 5*time.Minute, p.pollOnce(context.Background()))
}

func TestPollOnceRetriesWhileSyncInProgress(t *testing.T) {
	sync := &fakeSync{err: service.ErrSyncInProgress}
	p := NewSyncPoller(sync, 5*time.Minute)

	wait := p.pollOnce(context.Background())
	assert.Equal(t, p.retryInterval, wait)
	// no deferred flush is attempted mid-sync
	assert.Zero(t, sync.flushed)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	sync := &fakeSync{}
	p := NewSyncPoller(sync, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	// the first poll fires immediately; then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancel")
	}
	assert.GreaterOrEqual(t, sync.refreshed, 1)
}
