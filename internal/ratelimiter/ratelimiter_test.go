package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newFixedWindow(2, 10*time.Second, func() time.Time { return now })

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	now = now.Add(4 * time.Second)
	ok, wait := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 6*time.Second, wait)

	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok, "other clients keep their own budget")

	now = now.Add(6 * time.Second)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok, "a new window starts")
}

func TestFixedWindowPrune(t *testing.T) {
	now := time.Now()
	rl := newFixedWindow(1, time.Second, func() time.Time { return now })
	rl.Allow("a")

	now = now.Add(2 * time.Second)
	rl.prune()

	assert.Empty(t, rl.clients)
}

type mockScripter struct {
	mock.Mock
}

func (m *mockScripter) cmd(ctx context.Context, method string) *redis.Cmd {
	args := m.MethodCalled(method)
	cmd := redis.NewCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.Get(0))
	}
	return cmd
}

func (m *mockScripter) Eval(ctx context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return m.cmd(ctx, "Eval")
}

func (m *mockScripter) EvalSha(ctx context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return m.cmd(ctx, "EvalSha")
}

func (m *mockScripter) EvalRO(ctx context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return m.cmd(ctx, "EvalRO")
}

func (m *mockScripter) EvalShaRO(ctx context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return m.cmd(ctx, "EvalShaRO")
}

func (m *mockScripter) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (m *mockScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func TestSlidingWindowAllows(t *testing.T) {
	s := new(mockScripter)
	s.On("EvalSha").Return([]interface{}{int64(1), int64(4), int64(0)}, nil).Once()

	rl := NewSlidingWindowLimiter(s, 5, time.Minute, nil)
	ok, wait := rl.Allow("1.2.3.4")

	assert.True(t, ok)
	assert.Zero(t, wait)
	s.AssertExpectations(t)
}

func TestSlidingWindowRejects(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := new(mockScripter)
	s.On("EvalSha").Return([]interface{}{int64(0), int64(0), now.Add(30 * time.Second).UnixMilli()}, nil).Once()

	rl := NewSlidingWindowLimiter(s, 5, time.Minute, nil)
	rl.now = func() time.Time { return now }
	ok, wait := rl.Allow("1.2.3.4")

	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)
}

func TestSlidingWindowFailsOpen(t *testing.T) {
	s := new(mockScripter)
	s.On("EvalSha").Return(nil, errors.New("connection refused")).Once()

	rl := NewSlidingWindowLimiter(s, 5, time.Minute, nil)
	ok, _ := rl.Allow("1.2.3.4")

	assert.True(t, ok)
}
