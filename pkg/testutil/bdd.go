package testutil

import "testing"

// Given names the precondition of a scenario, such as an order already
// claimed or a notice already uploaded. Each step runs as a subtest.
func Given(t *testing.T, precondition string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("given "+precondition, fn)
}

// When names the action under test, typically one webhook delivery or
// store transition.
func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("when "+action, fn)
}

// Then holds the assertions on the observable outcome.
func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("then "+outcome, fn)
}
