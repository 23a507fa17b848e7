package registry

import (
	"sync"
	"testing"

	"github.com/hupe1980/agentroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedHandler struct{ name, desc string }

func (h *namedHandler) Name() string        { return h.name }
func (h *namedHandler) Description() string { return h.desc }
func (h *namedHandler) Invoke(*core.TurnContext, string) (string, error) {
	return h.name, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, r.Validate(), core.ErrEmptyRegistry)

	booker := &namedHandler{name: "Booker", desc: "bookings"}
	info := &namedHandler{name: "Info", desc: "information"}

	require.NoError(t, r.Register(booker))
	require.NoError(t, r.Register(info))
	assert.NoError(t, r.Validate())

	got, err := r.Get("Booker")
	require.NoError(t, err)
	assert.Same(t, booker, got)

	_, err = r.Get("Weather")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []string{"Booker", "Info"}, r.Names())
	assert.Equal(t, []core.Handler{booker, info}, r.List())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_DuplicateName(t *testing.T) {
	first := &namedHandler{name: "Booker"}
	r, err := New(first)
	require.NoError(t, err)

	err = r.Register(&namedHandler{name: "Booker"})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	// The original registration is untouched.
	got, err := r.Get("Booker")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())

	_, err = New(first, &namedHandler{name: "Booker"})
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestRegistry_EmptyName(t *testing.T) {
	r, _ := New()
	assert.ErrorIs(t, r.Register(&namedHandler{name: " "}), ErrEmptyName)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r, err := New(&namedHandler{name: "Booker"}, &namedHandler{name: "Info"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get("Info")
			assert.NoError(t, err)
			assert.Len(t, r.List(), 2)
		}()
	}
	wg.Wait()
}
