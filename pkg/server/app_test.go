package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct {
	mu     sync.Mutex
	events []string
}

func (t *trace) add(e string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

type fakeComponent struct {
	name     string
	tr       *trace
	startErr error
	stopErr  error
}

func (f *fakeComponent) Start() error {
	f.tr.add("start " + f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(context.Context) error {
	f.tr.add("stop " + f.name)
	return f.stopErr
}

func TestApp_StartsInOrderStopsInReverse(t *testing.T) {
	tr := &trace{}
	hooked := make(chan struct{})
	app := New(nil,
		WithComponent("queue", &fakeComponent{name: "queue", tr: tr}),
		WithComponent("consumer", nil),
		WithComponent("http", &fakeComponent{name: "http", tr: tr}),
		OnStarted(func(context.Context) error {
			tr.add("hook")
			close(hooked)
			return errors.New("warmup failed")
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-hooked:
	case <-time.After(time.Second):
		t.Fatal("app did not start")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"start queue", "start http", "hook", "stop http", "stop queue"}, tr.all())
}

func TestApp_StartFailureUnwinds(t *testing.T) {
	tr := &trace{}
	app := New(nil,
		WithComponent("queue", &fakeComponent{name: "queue", tr: tr}),
		WithComponent("consumer", &fakeComponent{name: "consumer", tr: tr, startErr: errors.New("no brokers")}),
		WithComponent("http", &fakeComponent{name: "http", tr: tr}),
	)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start consumer")
	assert.Equal(t, []string{"start queue", "start consumer", "stop queue"}, tr.all())
}

func TestApp_StopErrorsAreJoined(t *testing.T) {
	tr := &trace{}
	app := New(nil,
		WithComponent("a", &fakeComponent{name: "a", tr: tr, stopErr: errors.New("boom")}),
		WithComponent("b", &fakeComponent{name: "b", tr: tr}),
		WithShutdownTimeout(time.Second),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop a: boom")
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, tr.all())
}
