package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	applogger "FinCast/pkg/logger"
)

// Component is a long-running part of the application.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name string
	c    Component
}

// App starts components in registration order and stops them in reverse.
type App struct {
	log             *applogger.Logger
	components      []namedComponent
	onStarted       []func(ctx context.Context) error
	shutdownTimeout time.Duration
}

// Option configures App.
type Option func(*App)

// WithComponent appends a component. A nil component is skipped.
func WithComponent(name string, c Component) Option {
	return func(a *App) {
		if c != nil {
			a.components = append(a.components, namedComponent{name: name, c: c})
		}
	}
}

// OnStarted runs fn once every component is up. Its error is logged, not fatal.
func OnStarted(fn func(ctx context.Context) error) Option {
	return func(a *App) { a.onStarted = append(a.onStarted, fn) }
}

// WithShutdownTimeout bounds the total time spent stopping components.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func New(l *applogger.Logger, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{log: l, shutdownTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	for i, nc := range a.components {
		if err := nc.c.Start(); err != nil {
			a.log.Error("component start failed", applogger.String("component", nc.name), applogger.Error(err))
			stopErr := a.stop(a.components[:i])
			return errors.Join(fmt.Errorf("start %s: %w", nc.name, err), stopErr)
		}
		a.log.Info("component started", applogger.String("component", nc.name))
	}

	for _, fn := range a.onStarted {
		if err := fn(ctx); err != nil {
			a.log.Warn("post-start hook failed", applogger.Error(err))
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.stop(a.components)
}

func (a *App) stop(components []namedComponent) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		nc := components[i]
		if err := nc.c.Stop(ctx); err != nil {
			a.log.Warn("component stop failed", applogger.String("component", nc.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", nc.name, err))
			continue
		}
		a.log.Info("component stopped", applogger.String("component", nc.name))
	}
	if len(errs) == 0 {
		a.log.Info("shutdown complete")
	}
	return errors.Join(errs...)
}
