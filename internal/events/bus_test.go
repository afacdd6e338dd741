package events

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBus_ListenTokensStartAtOne(t *testing.T) {
	bus := New()

	first := bus.Listen("add.App", func(args ...any) {})
	second := bus.Listen("create.App", func(args ...any) {})
	third := bus.Listen("add.App", func(args ...any) {})

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
	require.Equal(t, 3, third)
}

func TestBus_TriggerSpreadsArgsInRegistrationOrder(t *testing.T) {
	bus := New()
	var calls []string

	bus.Listen("create.Root", func(args ...any) {
		require.Equal(t, []any{"a", 2}, args)
		calls = append(calls, "first")
	})
	bus.Listen("create.Root", func(args ...any) {
		calls = append(calls, "second")
	})

	ok := bus.Trigger("create.Root", "a", 2)
	require.True(t, ok)
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestBus_TriggerWithoutListenersReturnsFalse(t *testing.T) {
	bus := New()
	called := false
	bus.Listen("other", func(args ...any) { called = true })

	require.False(t, bus.Trigger("missing"))
	require.False(t, called)
	require.Equal(t, 0, bus.Count("missing"))
}

func TestBus_UnlistenRemovesExactlyOne(t *testing.T) {
	bus := New()
	var calls []int

	bus.Listen("evt", func(args ...any) { calls = append(calls, 1) })
	token := bus.Listen("evt", func(args ...any) { calls = append(calls, 2) })
	bus.Listen("evt", func(args ...any) { calls = append(calls, 3) })

	result := bus.Unlisten(token)
	require.True(t, result.Found)
	require.Equal(t, token, result.Token)

	bus.Trigger("evt")
	require.Equal(t, []int{1, 3}, calls)
	require.Equal(t, 2, bus.Count("evt"))
}

func TestBus_UnlistenUnknownToken(t *testing.T) {
	bus := New()
	bus.Listen("evt", func(args ...any) {})

	result := bus.Unlisten(42)
	require.False(t, result.Found)
	require.Equal(t, 1, bus.Count("evt"))

	// A removed token cannot be removed twice.
	token := bus.Listen("evt", func(args ...any) {})
	require.True(t, bus.Unlisten(token).Found)
	require.False(t, bus.Unlisten(token).Found)
}

func TestBus_CallbackMayUnlistenDuringTrigger(t *testing.T) {
	bus := New()
	var calls []string
	var selfToken int

	selfToken = bus.Listen("evt", func(args ...any) {
		calls = append(calls, "self")
		bus.Unlisten(selfToken)
	})
	bus.Listen("evt", func(args ...any) { calls = append(calls, "next") })

	bus.Trigger("evt")
	require.Equal(t, []string{"self", "next"}, calls)

	bus.Trigger("evt")
	require.Equal(t, []string{"self", "next", "next"}, calls)
}

func TestBus_Events(t *testing.T) {
	bus := New()
	a := bus.Listen("a", func(args ...any) {})
	bus.Listen("b", func(args ...any) {})

	require.Equal(t, []string{"a", "b"}, bus.Events())

	bus.Unlisten(a)
	require.Equal(t, []string{"b"}, bus.Events())
}

// Property: tokens are unique and strictly increasing, and every unlistened
// token stops receiving triggers.
func TestBus_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bus := New()
		names := []string{"add.A", "create.A", "create.B"}
		live := make(map[int]string)
		hits := make(map[int]int)
		last := 0

		numOps := rapid.IntRange(1, 60).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				name := rapid.SampledFrom(names).Draw(t, "name")
				var token int
				token = bus.Listen(name, func(args ...any) { hits[token]++ })
				if token <= last {
					t.Fatalf("token %d not greater than %d", token, last)
				}
				last = token
				live[token] = name
			case 1:
				for token := range live {
					if !bus.Unlisten(token).Found {
						t.Fatalf("live token %d not found", token)
					}
					delete(live, token)
					break
				}
			case 2:
				name := rapid.SampledFrom(names).Draw(t, "trigger")
				before := make(map[int]int, len(hits))
				for k, v := range hits {
					before[k] = v
				}
				expected := 0
				for _, n := range live {
					if n == name {
						expected++
					}
				}
				if got := bus.Trigger(name); got != (expected > 0) {
					t.Fatalf("Trigger(%q) = %v with %d listeners", name, got, expected)
				}
				for token, v := range hits {
					if live[token] != name && v != before[token] {
						t.Fatalf("token %d fired for %q", token, name)
					}
				}
			}
		}
	})
}
