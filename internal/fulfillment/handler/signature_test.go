package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifier(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_767_000_000, 0)
	v := NewVerifier("secret", 5*time.Minute)
	v.now = func() time.Time { return now }

	assert.NoError(t, v.Verify(Sign("secret", payload, now), payload))
	assert.NoError(t, v.Verify(Sign("secret", payload, now.Add(-4*time.Minute)), payload))

	// Rotated secrets send several v1 entries; any match is accepted.
	rotated := Sign("old", payload, now) + ",v1=" + Sign("secret", payload, now)[len("t=1767000000,v1="):]
	assert.NoError(t, v.Verify(rotated, payload))

	assert.ErrorIs(t, v.Verify("", payload), errSignatureMissing)
	assert.ErrorIs(t, v.Verify("t=abc,v1=00", payload), errSignatureMalformed)
	assert.ErrorIs(t, v.Verify("t=1767000000", payload), errSignatureMalformed)
	assert.ErrorIs(t, v.Verify(Sign("secret", payload, now.Add(-6*time.Minute)), payload), errSignatureExpired)
	assert.ErrorIs(t, v.Verify(Sign("secret", payload, now.Add(6*time.Minute)), payload), errSignatureExpired)
	assert.ErrorIs(t, v.Verify(Sign("other", payload, now), payload), errSignatureMismatch)
	assert.ErrorIs(t, v.Verify(Sign("secret", payload, now), []byte(`{"id":"evt_2"}`)), errSignatureMismatch)

	assert.Error(t, NewVerifier("", time.Minute).Verify(Sign("", payload, now), payload))
}
