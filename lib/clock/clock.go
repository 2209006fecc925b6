// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The batch runner stamps reports with Now, and the GitHub client
// waits out rate-limit windows with After. Both take a Clock instead
// of calling the time package so tests can pin time and fire waits
// deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	client, _ := github.NewClient(github.Config{Clock: fake, ...})
//	go client.CreateRef(...)           // hits a rate limit, waits
//	fake.WaitForTimers(1)              // the wait is registered
//	fake.Advance(time.Minute)          // and now it fires
package clock

import "time"

// Clock abstracts the time operations used by this module. Production
// code injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
