package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/invoicer/internal/domain/pipeline"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (*pipeline.Report, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Report{TotalOrders: 1}, nil
}

func TestScheduler_Ticks(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 5*time.Millisecond, zap.NewNop())
	assert.True(t, s.LastTick().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.False(t, s.LastTick().IsZero())
}

func TestScheduler_TickOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		level   zapcore.Level
	}{
		{"success", nil, "Scheduled batch done", zapcore.InfoLevel},
		{"in progress", pipeline.ErrBatchInProgress, "Batch already in progress, skipping tick", zapcore.InfoLevel},
		{"failure", errors.New("backend unavailable"), "Scheduled batch failed", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			s := NewScheduler(&countingRunner{err: tt.err}, time.Hour, zap.New(core))

			s.tick(context.Background())

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.False(t, s.LastTick().IsZero())
		})
	}
}
