package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/application/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	entered chan struct{}
	results []service.UpdateResult
}

func (f *fakeRefresher) UpdateRates(ctx context.Context) []service.UpdateResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.results
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewInvalidSpec(t *testing.T) {
	_, err := New("every tuesday", &fakeRefresher{}, time.Minute, logger.NopLogger{})

	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	refresher := &fakeRefresher{results: []service.UpdateResult{
		{Source: "ECB", Fetched: 30, Changed: 30},
		{Source: "BOC", Err: errors.New("timeout"), Error: "timeout"},
	}}

	s, err := New("@daily", refresher, time.Minute, logger.NopLogger{})
	require.NoError(t, err)

	results, ran := s.RunOnce(context.Background())

	assert.True(t, ran)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, refresher.count())
	assert.False(t, s.NextRun().IsZero())
}

func TestRunOnceDoesNotOverlap(t *testing.T) {
	refresher := &fakeRefresher{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s, err := New("@daily", refresher, 0, logger.NopLogger{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()
	<-refresher.entered

	_, ran := s.RunOnce(context.Background())
	assert.False(t, ran)

	close(refresher.block)
	<-done
	assert.Equal(t, 1, refresher.count())
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &fakeRefresher{}, time.Minute, logger.NopLogger{})
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
