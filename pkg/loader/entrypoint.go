package loader

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"
)

// ModInitializer is the "main" entrypoint type. OnInitialize runs once,
// when the game reaches its hook.
type ModInitializer interface {
	OnInitialize() error
}

// EntrypointSource lists entrypoints by key.
type EntrypointSource interface {
	Entrypoints(key string) []EntrypointContainer
}

// Invoke calls fn on every entrypoint registered under key that is a T.
// Every entrypoint runs even when an earlier one fails; failures are wrapped
// with the providing mod id and returned joined. An entrypoint that is not
// a T is an error of its mod.
func Invoke[T any](src EntrypointSource, key string, fn func(T) error) error {
	entries := src.Entrypoints(key)
	if len(entries) == 0 {
		Logger().Debug("no entrypoints", zap.String("key", key))
		return nil
	}

	var errs []error
	for _, e := range entries {
		if err := invokeOne(e, fn); err != nil {
			errs = append(errs, fmt.Errorf("could not execute entrypoint stage %q due to errors, provided by %q: %w", key, e.ModID, err))
		}
	}
	return stderrors.Join(errs...)
}

func invokeOne[T any](e EntrypointContainer, fn func(T) error) (err error) {
	v, ok := e.Value.(T)
	if !ok {
		var zero T
		return fmt.Errorf("entrypoint %T does not implement %T", e.Value, &zero)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(v)
}

// InitializerFunc adapts a function to ModInitializer.
type InitializerFunc func() error

func (f InitializerFunc) OnInitialize() error { return f() }
