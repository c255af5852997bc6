package engine

import "testing"

func TestStableEqualTimeOrder(t *testing.T) {
	eng := New()
	var order []int
	eng.Schedule(100, KindCallback, nil, nil, func(*Engine) { order = append(order, 1) })
	eng.Schedule(100, KindCallback, nil, nil, func(*Engine) { order = append(order, 2) })
	eng.Schedule(100, KindCallback, nil, nil, func(*Engine) { order = append(order, 3) })

	eng.RunUntil(100)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTimeMonotonicity(t *testing.T) {
	eng := New()
	var times []Time
	eng.Schedule(50, KindCallback, nil, nil, func(e *Engine) { times = append(times, e.Now()) })
	eng.Schedule(10, KindCallback, nil, nil, func(e *Engine) { times = append(times, e.Now()) })
	eng.Schedule(30, KindCallback, nil, nil, func(e *Engine) { times = append(times, e.Now()) })

	eng.RunUntil(1000)

	prev := Time(0)
	for _, ti := range times {
		if ti < prev {
			t.Fatalf("time went backwards: %v", times)
		}
		prev = ti
	}
	if eng.Now() != 1000 {
		t.Fatalf("Now() = %d, want 1000 (advance to target with no events due)", eng.Now())
	}
}

func TestCancelMatching(t *testing.T) {
	eng := New()
	fired := false
	sender := "station-a"
	eng.Schedule(200, KindSignalCease, sender, nil, func(*Engine) { fired = true })
	eng.Schedule(500, KindCallback, nil, nil, func(*Engine) {})

	n := eng.CancelMatching(func(ev *Event) bool {
		return ev.Kind == KindSignalCease && ev.Sender == sender
	})
	if n != 1 {
		t.Fatalf("CancelMatching removed %d events, want 1", n)
	}
	if eng.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after cancellation", eng.Len())
	}

	eng.RunUntil(1000)
	if fired {
		t.Fatalf("canceled event fired")
	}
}

func TestScheduleBeforeNowPanics(t *testing.T) {
	eng := New()
	eng.RunUntil(100)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic scheduling before now")
		}
	}()
	eng.Schedule(50, KindCallback, nil, nil, func(*Engine) {})
}

func TestRegistry(t *testing.T) {
	eng := New()
	eng.Register("h1", 42)
	obj, ok := eng.Lookup("h1")
	if !ok || obj.(int) != 42 {
		t.Fatalf("Lookup(h1) = %v, %v", obj, ok)
	}
	if _, ok := eng.Lookup("missing"); ok {
		t.Fatalf("Lookup(missing) should not be found")
	}
}

func TestChainedScheduling(t *testing.T) {
	eng := New()
	count := 0
	var step func(*Engine)
	step = func(e *Engine) {
		count++
		if count < 5 {
			e.ScheduleCallback(10, step)
		}
	}
	eng.ScheduleCallback(10, step)
	eng.RunUntil(1000)
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
}
