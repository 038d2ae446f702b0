package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Authorize(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&mockConn{})

	_, err := reg.Identity(id)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, reg.Authorize(id, "user-1"))

	ident, err := reg.Identity(id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident)

	// identity is immutable once attached
	assert.ErrorIs(t, reg.Authorize(id, "user-2"), ErrAlreadyAuthorized)

	ident, _ = reg.Identity(id)
	assert.Equal(t, "user-1", ident)
}

func TestRegistry_AuthorizeUnknown(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&mockConn{})
	reg.Deregister(id)

	assert.ErrorIs(t, reg.Authorize(id, "user-1"), ErrUnknownConnection)
}

func TestRegistry_DeregisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&mockConn{})
	require.NoError(t, reg.Authorize(id, "user-1"))
	require.NoError(t, reg.trackJoin(id, "order-1"))
	require.NoError(t, reg.trackJoin(id, "order-2"))

	rooms := reg.Deregister(id)
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, rooms)

	// second call is a no-op, never an error
	assert.Empty(t, reg.Deregister(id))
}

func TestRegistry_TrackJoinAfterDeregister(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&mockConn{})
	reg.Deregister(id)

	assert.ErrorIs(t, reg.trackJoin(id, "order-1"), ErrUnknownConnection)
	assert.False(t, reg.alive(id))

	// trackLeave on a gone connection must not panic
	reg.trackLeave(id, "order-1")
}

func TestRegistry_FreshIDs(t *testing.T) {
	reg := NewRegistry()
	a := reg.Register(&mockConn{})
	b := reg.Register(&mockConn{})
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
