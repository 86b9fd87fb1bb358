package network

import "testing"

func TestPushFillBufferOfferPop(t *testing.T) {
	l := newTestLink()
	v := fakeVehicle{id: 1, pce: 1, maxV: 20}

	if !l.IsAvailable() {
		t.Fatal("fresh link should have storage available")
	}
	l.PushVeh(v, 0)
	if l.QueueLen() != 1 {
		t.Fatalf("expected 1 queued entry, got %d", l.QueueLen())
	}

	l.UpdateCapacity(0)
	l.FillBuffer(5) // earliest_exit is 10, not yet reached
	if l.BufferLen() != 0 {
		t.Fatalf("vehicle should not be in buffer before earliest_exit, got buffer len %d", l.BufferLen())
	}

	l.FillBuffer(10)
	if l.BufferLen() != 1 {
		t.Fatalf("expected 1 buffered entry at earliest_exit, got %d", l.BufferLen())
	}

	l.UpdateCapacity(10)
	got, ok := l.OffersVeh(10)
	if !ok || got.VehicleID() != v.id {
		t.Fatalf("expected link to offer the buffered vehicle, got %v ok=%v", got, ok)
	}

	popped := l.PopVeh()
	if popped.VehicleID() != v.id {
		t.Fatalf("popped wrong vehicle: %v", popped)
	}
	if l.IsVehStuck(10) {
		t.Fatal("pop must reset the stuck timer")
	}
}

func TestWaitingListTakesPriorityOverQueue(t *testing.T) {
	l := newTestLink()
	queued := fakeVehicle{id: 1, pce: 1, maxV: 20}
	waiting := fakeVehicle{id: 2, pce: 1, maxV: 20}

	l.PushVeh(queued, 0) // earliest_exit = 10
	// waitingList has no public writer left in production code (the
	// only thing that used to push onto it, PushVehToWaitingList, was
	// removed as dead API surface); seed it directly, same-package, the
	// way a scenario snapshot loader would.
	l.waitingList = append(l.waitingList, waiting)

	l.FillBuffer(0) // queue entry not yet due, waiting list always drains
	if l.BufferLen() != 1 || l.buffer[0].VehicleID() != waiting.id {
		t.Fatalf("expected waiting-list vehicle to be buffered first, got %+v", l.buffer)
	}
}

func TestFlowCapBanksAtMostOneSecond(t *testing.T) {
	fc := NewFlowCap(3600, 1) // 1 veh/s
	fc.Consume(1)
	if fc.HasCapacityLeft() {
		t.Fatal("capacity should be exhausted after consuming the full per-second allowance")
	}
	fc.Update(0)
	fc.Update(100) // large gap; must clamp to capacityPerSecond, not bank 100s
	if fc.value != fc.capacityPerSecond {
		t.Fatalf("expected value clamped to %v, got %v", fc.capacityPerSecond, fc.value)
	}
}

func TestStorageCapMaxPrefersLarger(t *testing.T) {
	// capacityPerSecond = 1; geometric = 100*1*1/7.5 = 13.33 -> geometric wins
	s := NewStorageCap(1, 100, 1, 1, 7.5)
	if s.max <= 1 {
		t.Fatalf("expected geometric bound to dominate, got max=%v", s.max)
	}
}

func TestStorageApplyUpdatesNeverGoesNegative(t *testing.T) {
	s := NewStorageCap(1, 100, 1, 1, 7.5)
	s.Release(5) // released with nothing used/consumed
	s.ApplyUpdates()
	if s.used != 0 {
		t.Fatalf("used must clamp to 0, got %v", s.used)
	}
}

func TestStuckTimerIdempotentStart(t *testing.T) {
	st := NewStuckTimer(5)
	st.Start(10)
	st.Start(20) // must not move the start time
	if st.IsStuck(14) {
		t.Fatal("should not be stuck before threshold elapses")
	}
	if !st.IsStuck(15) {
		t.Fatal("should be stuck once threshold elapses from the first Start")
	}
}

func TestSplitOutLinkTakeVehDrainsAndResets(t *testing.T) {
	l := NewSplitOutLink(1, 10, 20, 2, 100, 1, 3600, 1, 7.5)
	v := fakeVehicle{id: 1, pce: 1, maxV: 20}
	l.PushVeh(v)

	out := l.TakeVeh()
	if len(out) != 1 || out[0].VehicleID() != v.id {
		t.Fatalf("expected drained outbound vehicle, got %v", out)
	}
	if len(l.TakeVeh()) != 0 {
		t.Fatal("second TakeVeh should return nothing")
	}
}

func TestSplitOutLinkApplyRemoteCredit(t *testing.T) {
	// length 7.5 at cell size 7.5 and 1 veh/s gives a max storage of
	// exactly 1 PCE, so a single push exhausts it.
	l := NewSplitOutLink(1, 10, 20, 2, 7.5, 1, 3600, 1, 7.5)
	v := fakeVehicle{id: 1, pce: 1, maxV: 20}
	l.PushVeh(v)
	if l.IsAvailable() {
		t.Fatal("storage should be consumed immediately on push")
	}
	l.ApplyRemoteCredit(1)
	if !l.IsAvailable() {
		t.Fatal("remote credit should free the consumed storage")
	}
}
