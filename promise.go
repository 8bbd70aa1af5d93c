package proseql

import "sync"

// Promise wraps a deferred operation so repeated reads share one
// underlying state transition (spec §4.11: "exposed both as a lazy
// effect and as a promise via a cached runPromise accessor; the
// underlying state transition happens once per accessor, regardless of
// how many times the promise is read"). Go has no ambient effect
// system, so the "lazy effect" is the plain func the caller already
// holds; Promise only adds the once-cell memoization around it.
type Promise[T any] struct {
	once   sync.Once
	fn     func() (T, error)
	result T
	err    error
}

// NewPromise wraps fn so its first call's result is cached for every
// subsequent RunPromise.
func NewPromise[T any](fn func() (T, error)) *Promise[T] {
	return &Promise[T]{fn: fn}
}

// RunPromise executes fn on the first call and returns the cached
// result on every later call, whether the first call succeeded or not.
func (p *Promise[T]) RunPromise() (T, error) {
	p.once.Do(func() {
		p.result, p.err = p.fn()
	})
	return p.result, p.err
}
