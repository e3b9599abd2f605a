package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"go.uber.org/zap"
)

type fakeExpirer struct {
	calls int
	err   error
	panic bool
}

func (f *fakeExpirer) ExpireStalePayments(ctx context.Context) (int, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return 3, f.err
}

func TestScheduler_StartRejectsBadSchedule(t *testing.T) {
	s := New(config.PaymentsConfig{ExpirySchedule: "not a schedule"}, &fakeExpirer{}, nil, zap.NewNop())
	assert.Error(t, s.Start())
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := New(config.PaymentsConfig{ExpirySchedule: "@every 1h"}, &fakeExpirer{}, nil, zap.NewNop())
	assert.NoError(t, s.Start())
	<-s.Stop().Done()
}

func TestScheduler_JobsSurviveFailures(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	s := New(config.PaymentsConfig{}, exp, nil, zap.NewNop())

	s.expirePayments()
	exp.err = nil
	exp.panic = true
	assert.NotPanics(t, s.expirePayments)
	assert.Equal(t, 2, exp.calls)
}
