// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(3 * time.Second)

	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(3 * time.Second)) {
			t.Errorf("fired at %v", fired)
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after firing", clock.PendingCount())
	}
}

func TestFakeClockAfterNonPositiveDuration(t *testing.T) {
	for _, duration := range []time.Duration{0, -time.Second} {
		clock := Fake(epoch)
		select {
		case <-clock.After(duration):
		default:
			t.Errorf("After(%v) should fire immediately", duration)
		}
		if clock.PendingCount() != 0 {
			t.Errorf("After(%v) registered a waiter", duration)
		}
	}
}

func TestFakeClockAfterPartialAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(5 * time.Second)

	clock.Advance(3 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before deadline")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at deadline")
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not fire")
	}
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	if got := Real().Now(); got.Before(before) {
		t.Errorf("Real().Now() = %v, before %v", got, before)
	}
	select {
	case <-Real().After(0):
	case <-time.After(5 * time.Second):
		t.Fatal("Real().After(0) did not fire")
	}
}
