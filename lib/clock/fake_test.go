// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	fake := Fake(baseTime)
	if !fake.Now().Equal(baseTime) {
		t.Errorf("Now() = %v, want %v", fake.Now(), baseTime)
	}

	fake.Advance(90 * time.Second)
	want := baseTime.Add(90 * time.Second)
	if !fake.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfter(t *testing.T) {
	t.Run("fires when deadline reached", func(t *testing.T) {
		fake := Fake(baseTime)
		channel := fake.After(5 * time.Second)

		select {
		case <-channel:
			t.Fatal("After fired before Advance")
		default:
		}

		fake.Advance(5 * time.Second)
		select {
		case fired := <-channel:
			if !fired.Equal(baseTime.Add(5 * time.Second)) {
				t.Errorf("fired at %v, want %v", fired, baseTime.Add(5*time.Second))
			}
		default:
			t.Fatal("After did not fire after Advance")
		}
	})

	t.Run("non-positive duration fires immediately", func(t *testing.T) {
		fake := Fake(baseTime)
		select {
		case <-fake.After(0):
		default:
			t.Fatal("After(0) did not fire immediately")
		}
	})

	t.Run("partial advance does not fire", func(t *testing.T) {
		fake := Fake(baseTime)
		channel := fake.After(10 * time.Second)
		fake.Advance(9 * time.Second)
		select {
		case <-channel:
			t.Fatal("fired before deadline")
		default:
		}
		fake.Advance(time.Second)
		select {
		case <-channel:
		default:
			t.Fatal("did not fire at deadline")
		}
	})
}

func TestFakeSleep(t *testing.T) {
	fake := Fake(baseTime)
	done := make(chan struct{})

	go func() {
		fake.Sleep(3 * time.Second)
		close(done)
	}()

	fake.WaitForWaiters(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	fake.Advance(3 * time.Second)
	<-done
}

func TestWaitForWaiters(t *testing.T) {
	fake := Fake(baseTime)
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", fake.PendingCount())
	}

	for i := 0; i < 3; i++ {
		go fake.Sleep(time.Second)
	}
	fake.WaitForWaiters(3)
	if fake.PendingCount() != 3 {
		t.Errorf("PendingCount = %d, want 3", fake.PendingCount())
	}

	fake.Advance(time.Second)
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount after Advance = %d, want 0", fake.PendingCount())
	}
}

func TestAdvanceFiresAllExpiredWaiters(t *testing.T) {
	fake := Fake(baseTime)
	first := fake.After(time.Second)
	second := fake.After(2 * time.Second)
	third := fake.After(10 * time.Second)

	fake.Advance(5 * time.Second)

	target := baseTime.Add(5 * time.Second)
	for name, channel := range map[string]<-chan time.Time{"first": first, "second": second} {
		select {
		case fired := <-channel:
			if !fired.Equal(target) {
				t.Errorf("%s fired at %v, want %v", name, fired, target)
			}
		default:
			t.Errorf("%s waiter did not fire", name)
		}
	}
	select {
	case <-third:
		t.Error("third waiter fired before its deadline")
	default:
	}
}
