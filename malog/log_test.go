package malog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusFansOutToAllSinks(t *testing.T) {
	bus := NewBus()
	var a, b []string
	bus.AddSink(SinkFunc(func(level Level, message string, kv ...any) {
		a = append(a, message)
	}))
	bus.AddSink(SinkFunc(func(level Level, message string, kv ...any) {
		b = append(b, message)
	}))

	bus.Emit(LevelInfo, "hello")

	require.Equal(t, []string{"hello"}, a)
	require.Equal(t, []string{"hello"}, b)
}

func TestRingSinkDropsOnOverflowAndDrainsInOrder(t *testing.T) {
	ring := NewRingSink(2) // rounds to 2
	ring.Log(LevelInfo, "one")
	ring.Log(LevelWarn, "two")
	ring.Log(LevelError, "dropped") // buffer full, should be dropped

	var got []string
	ring.Drain(SinkFunc(func(level Level, message string, kv ...any) {
		got = append(got, message)
	}))

	require.Equal(t, []string{"one", "two"}, got)
}

func TestRingSinkDrainEmptyIsNoop(t *testing.T) {
	ring := NewRingSink(4)
	called := false
	ring.Drain(SinkFunc(func(level Level, message string, kv ...any) {
		called = true
	}))
	require.False(t, called)
}
