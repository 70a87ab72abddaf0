package subscription

import (
	"errors"
	"sync"
	"testing"
)

func TestSubscribeNotify(t *testing.T) {
	r := NewRegistry[int]()

	var got []int
	sub := r.Subscribe(func(v int) error {
		got = append(got, v)
		return nil
	})

	if err := r.Notify(1); err != nil {
		t.Fatalf("Notify returned %v", err)
	}
	if err := r.Notify(2); err != nil {
		t.Fatalf("Notify returned %v", err)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
	if sub.ID() == 0 {
		t.Error("expected non-zero subscriber id")
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Run("Removed callback is never invoked", func(t *testing.T) {
		r := NewRegistry[string]()
		calls := 0
		sub := r.Subscribe(func(string) error {
			calls++
			return nil
		})

		_ = r.Notify("a")
		sub.Unsubscribe()
		_ = r.Notify("b")
		_ = r.Notify("c")

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d", r.Len())
		}
	})

	t.Run("Repeated unsubscribe is a no-op", func(t *testing.T) {
		r := NewRegistry[string]()
		sub := r.Subscribe(func(string) error { return nil })
		other := r.Subscribe(func(string) error { return nil })

		sub.Unsubscribe()
		sub.Unsubscribe()
		sub.Unsubscribe()

		if r.Len() != 1 {
			t.Errorf("expected other subscriber to survive, got len %d", r.Len())
		}
		other.Unsubscribe()
	})

	t.Run("Unsubscribe from inside callback", func(t *testing.T) {
		r := NewRegistry[int]()
		calls := 0
		var sub *Subscription[int]
		sub = r.Subscribe(func(int) error {
			calls++
			sub.Unsubscribe()
			return nil
		})

		_ = r.Notify(1)
		_ = r.Notify(2)

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestFailureIsolation(t *testing.T) {
	errBrokenPipe := errors.New("broken pipe")

	tests := []struct {
		name string
		bad  Func[int]
	}{
		{"error", func(int) error { return errBrokenPipe }},
		{"panic", func(int) error { panic("write on closed stream") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry[int]()
			bad := r.Subscribe(tt.bad)

			received := 0
			r.Subscribe(func(v int) error {
				received = v
				return nil
			})

			err := r.Notify(42)
			if err == nil {
				t.Fatal("expected joined callback error")
			}
			if received != 42 {
				t.Errorf("second subscriber did not receive value, got %d", received)
			}

			var cbErr *CallbackError
			if !errors.As(err, &cbErr) {
				t.Fatalf("expected *CallbackError, got %T", err)
			}
			if cbErr.SubscriberID != bad.ID() {
				t.Errorf("expected failing id %d, got %d", bad.ID(), cbErr.SubscriberID)
			}
			if tt.name == "error" && !errors.Is(err, errBrokenPipe) {
				t.Errorf("expected wrapped broken pipe, got %v", err)
			}
		})
	}
}

func TestConcurrentSubscribeNotify(t *testing.T) {
	r := NewRegistry[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := r.Subscribe(func(int) error { return nil })
			sub.Unsubscribe()
		}()
		go func(v int) {
			defer wg.Done()
			_ = r.Notify(v)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("expected all subscribers removed, got %d", r.Len())
	}
}
