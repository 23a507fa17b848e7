package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/testutil"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/tool"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTurn(maxCalls int) (*core.TurnContext, chan core.Event) {
	emit := make(chan core.Event, 32)
	key := core.SessionKey{AppName: "routing_app", UserID: "user_123", SessionID: "s1"}
	tc := core.NewTurnContext(context.Background(), "turn-1", core.NewRequest(key, "x"), "Coordinator", emit, maxCalls, nil)
	return tc, emit
}

func drain(ch chan core.Event) []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func bookingTool() *tool.FunctionTool {
	return tool.NewFunctionTool("booking_handler", "Handles booking requests for flights and hotels.",
		func(_ *core.ToolContext, request string) (string, error) {
			return fmt.Sprintf("Booking action for '%s' has been successfully handled.", request), nil
		})
}

func TestSpecialist_SingleAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	booker, err := NewSpecialist("Booker", "Handles bookings.", WithActions(bookingTool()), func(o *Options) {
		o.Metrics = metrics
	})
	require.NoError(t, err)

	tc, emit := newTurn(0)
	out, err := booker.Invoke(tc.ForHandler("Booker"), "Book me a hotel in Paris.")
	require.NoError(t, err)
	assert.Equal(t, "Booking action for 'Book me a hotel in Paris.' has been successfully handled.", out)

	events := drain(emit)
	require.Len(t, events, 2)
	calls := events[0].ActionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "booking_handler", calls[0].Name)
	assert.Equal(t, "Book me a hotel in Paris.", calls[0].Request)

	results := events[1].ActionResults()
	require.Len(t, results, 1)
	assert.Equal(t, calls[0].ID, results[0].ID)
	assert.Equal(t, out, results[0].Result)

	for _, ev := range events {
		assert.False(t, ev.IsFinal())
		assert.Equal(t, "Booker", ev.Author)
		assert.Equal(t, "turn-1", ev.TurnID)
	}

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ActionInvocationsTotal.WithLabelValues("Booker", "booking_handler", "success")))
}

func TestSpecialist_NoActionsSimulated(t *testing.T) {
	h, err := NewSpecialist("Info", "General information.")
	require.NoError(t, err)

	tc, emit := newTurn(0)
	out, err := h.Invoke(tc, "Tell me a random fact.")
	require.NoError(t, err)
	assert.Equal(t, "Info handled request 'Tell me a random fact.'. Result: Simulated completion.", out)
	assert.Empty(t, drain(emit))
}

func TestSpecialist_NoActionsUsesGenerator(t *testing.T) {
	gen := testutil.NewStubGenerator("Octopuses have three hearts.")
	h, err := NewSpecialist("Info", "General information.", func(o *Options) {
		o.Generator = gen
		o.Instruction = NewInstructionFromText("Answer briefly.")
	})
	require.NoError(t, err)

	tc, _ := newTurn(0)
	out, err := h.Invoke(tc, "Tell me a random fact.")
	require.NoError(t, err)
	assert.Equal(t, "Octopuses have three hearts.", out)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Answer briefly.", calls[0].Instruction)
	assert.Equal(t, 1, tc.Limiter.Count())
}

func TestSpecialist_GeneratorSelectsActions(t *testing.T) {
	flights := tool.NewFunctionTool("flights", "Books flights.", func(_ *core.ToolContext, r string) (string, error) {
		return "flight booked", nil
	})
	hotels := tool.NewFunctionTool("hotels", "Books hotels.", func(_ *core.ToolContext, r string) (string, error) {
		return "hotel booked", nil
	})

	gen := testutil.NewStubGenerator(NoneMarker).
		On("Flight and hotel to Rome", "hotels, flights, hotels, teleport")

	h, err := NewSpecialist("Booker", "Bookings.", WithActions(flights, hotels), func(o *Options) { o.Generator = gen })
	require.NoError(t, err)

	tc, emit := newTurn(0)
	out, err := h.Invoke(tc, "Flight and hotel to Rome")
	require.NoError(t, err)
	assert.Equal(t, "hotel booked\nflight booked", out)
	assert.Len(t, drain(emit), 4)

	// NONE falls back to a generator completion.
	out, err = h.Invoke(tc, "Just chatting")
	require.NoError(t, err)
	assert.Equal(t, NoneMarker, out)
	assert.Empty(t, drain(emit))
}

func TestSpecialist_FirstSelectorWithoutGenerator(t *testing.T) {
	a := tool.NewFunctionTool("a", "", func(*core.ToolContext, string) (string, error) { return "A", nil })
	b := tool.NewFunctionTool("b", "", func(*core.ToolContext, string) (string, error) { return "B", nil })

	h, err := NewSpecialist("H", "", WithActions(a, b))
	require.NoError(t, err)

	tc, _ := newTurn(0)
	out, err := h.Invoke(tc, "anything")
	require.NoError(t, err)
	assert.Equal(t, "A", out)
	assert.Len(t, h.Actions(), 2)
}

func TestSpecialist_ActionFailureRecorded(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "", func(*core.ToolContext, string) (string, error) {
		return "", errors.New("backend down")
	})
	h, err := NewSpecialist("H", "", WithActions(boom))
	require.NoError(t, err)

	tc, emit := newTurn(0)
	_, err = h.Invoke(tc, "req")
	require.Error(t, err)
	assert.True(t, tool.IsCode(err, tool.CodeExecution))

	events := drain(emit)
	require.Len(t, events, 2)
	assert.Contains(t, events[1].ActionResults()[0].Error, "backend down")
}

func TestSpecialist_ActionPanicRecovered(t *testing.T) {
	bad := tool.NewFunctionTool("bad", "", func(*core.ToolContext, string) (string, error) { panic("kaboom") })
	h, err := NewSpecialist("H", "", WithActions(bad))
	require.NoError(t, err)

	tc, _ := newTurn(0)
	_, err = h.Invoke(tc, "req")
	assert.True(t, tool.IsCode(err, tool.CodePanic))
}

func TestSpecialist_DuplicateActionNames(t *testing.T) {
	_, err := NewSpecialist("H", "", WithActions(bookingTool(), bookingTool()))
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestSpecialist_CallLimit(t *testing.T) {
	gen := testutil.NewStubGenerator("x")
	h, err := NewSpecialist("H", "", func(o *Options) { o.Generator = gen })
	require.NoError(t, err)

	tc, _ := newTurn(1)
	require.NoError(t, tc.Limiter.Increment())

	_, err = h.Invoke(tc, "req")
	assert.ErrorIs(t, err, core.ErrCallLimitExceeded)
	assert.Empty(t, gen.Calls())
}

func TestInstruction_Dynamic(t *testing.T) {
	instr := NewInstructionFromFunc(func(tc *core.TurnContext) (string, error) {
		return "Serve user " + tc.Key().UserID, nil
	})
	tc, _ := newTurn(0)
	text, err := instr.Resolve(tc)
	require.NoError(t, err)
	assert.Equal(t, "Serve user user_123", text)
	assert.False(t, instr.IsZero())
	assert.True(t, Instruction{}.IsZero())
}

func TestFuncHandler(t *testing.T) {
	h := NewFuncHandler("Echo", "echoes", func(_ *core.TurnContext, r string) (string, error) { return r, nil })
	tc, _ := newTurn(0)
	out, err := h.Invoke(tc, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, "Echo", h.Name())
	assert.Equal(t, "echoes", h.Description())
}
