// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() and advance time explicitly.
//
// The transport's rate-limit handling sleeps for server-dictated
// durations. Anything that sleeps or reads the wall clock should go
// through a Clock so tests never wait on real time.
package clock

import "time"

// Clock provides the time operations used by the connector: reading
// the current time, waiting for a duration via a channel, and
// sleeping. Production code injects Real(); tests inject Fake() with
// deterministic time control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
