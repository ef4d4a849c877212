package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWithRecover_NoPanic tests that a non-panicking fn runs normally and
// no panic handler fires.
func TestWithRecover_NoPanic(t *testing.T) {
	ran := false
	var handlerCalled bool
	wrapped := WithRecover(func() { ran = true }, func(error) { handlerCalled = true })
	wrapped()

	assert.True(t, ran)
	assert.False(t, handlerCalled)
}

// TestWithRecover_Panic tests that a panicking fn is recovered and every
// panicFns handler receives a *PanicError.
func TestWithRecover_Panic(t *testing.T) {
	var captured error
	wrapped := WithRecover(func() { panic("boom") }, func(err error) { captured = err })

	require.NotPanics(t, func() { wrapped() })
	require.Error(t, captured)
	assert.Contains(t, captured.Error(), "boom")

	var panicErr *PanicError
	assert.ErrorAs(t, captured, &panicErr)
}

// TestWithRecover_NilFn tests that wrapping a nil fn yields a nil func.
func TestWithRecover_NilFn(t *testing.T) {
	wrapped := WithRecover(nil)
	assert.Nil(t, wrapped)
}

// TestWithRecover_NoPanicFns tests that a panic with zero handlers doesn't
// itself panic (ranging over a nil panicFns slice is a no-op).
func TestWithRecover_NoPanicFns(t *testing.T) {
	wrapped := WithRecover(func() { panic("boom") })
	assert.NotPanics(t, func() { wrapped() })
}

// TestGo_RecoversPanic tests that Go launches fn in a goroutine and still
// recovers a panic, reporting it to panicFns.
func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var captured error
	Go(func() {
		defer wg.Done()
		panic("goroutine boom")
	}, func(err error) { captured = err })
	wg.Wait()

	require.Error(t, captured)
	assert.Contains(t, captured.Error(), "goroutine boom")
}

// TestPanicError_ErrorIsCached tests that Error() is stable across calls
// (the result is memoized in an atomic pointer).
func TestPanicError_ErrorIsCached(t *testing.T) {
	err := NewPanicError("oops", []byte("stack trace"))
	first := err.Error()
	second := err.Error()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "oops")
	assert.Contains(t, first, "stack trace")
}
