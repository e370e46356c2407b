package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

func TestRunJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var fast, failing, disabled atomic.Int32
	done := make(chan struct{})
	go func() {
		RunJobs(ctx, logger.Nop(),
			Job{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
				fast.Add(1)
				return nil
			}},
			Job{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
				failing.Add(1)
				return errors.New("boom")
			}},
			Job{Name: "disabled", Run: func(context.Context) error {
				disabled.Add(1)
				return nil
			}},
		)
		close(done)
	}()

	assert.Eventually(t, func() bool { return fast.Load() >= 3 && failing.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunJobs did not return after cancel")
	}
	assert.Zero(t, disabled.Load())
}
