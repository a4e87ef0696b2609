package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterJoinIsIdempotent(t *testing.T) {
	reg, router := newTestRegistry()
	s, err := reg.Create("conn-1", "alice", &fakeOutbox{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, router.Join(s, "general"))
	}

	members := router.Members("general")
	require.Len(t, members, 1)
	assert.Same(t, s, members[0])
	assert.Equal(t, []string{"general"}, s.Rooms())
}

func TestRouterJoinRejects(t *testing.T) {
	reg, router := newTestRegistry()
	s, err := reg.Create("conn-1", "alice", &fakeOutbox{})
	require.NoError(t, err)

	assert.ErrorIs(t, router.Join(s, ""), ErrValidation)
	assert.ErrorIs(t, router.Join(nil, "general"), ErrNotFound)

	reg.Remove("conn-1")
	assert.ErrorIs(t, router.Join(s, "general"), ErrNotFound)
	assert.Zero(t, router.RoomCount())
}

func TestRouterLeave(t *testing.T) {
	reg, router := newTestRegistry()
	a, _ := reg.Create("a", "alice", &fakeOutbox{})
	b, _ := reg.Create("b", "bob", &fakeOutbox{})
	require.NoError(t, router.Join(a, "general"))
	require.NoError(t, router.Join(b, "general"))

	assert.True(t, router.Leave(a, "general"))
	assert.False(t, router.Leave(a, "general"), "second leave is a no-op")
	assert.False(t, router.Leave(a, "unknown-room"))
	assert.Equal(t, 1, router.MemberCount("general"))
	assert.Equal(t, StateConnected, a.State())

	assert.True(t, router.Leave(b, "general"))
	assert.Empty(t, router.Rooms())
}

func TestRouterBroadcastReachesEveryMemberOnce(t *testing.T) {
	reg, router := newTestRegistry()

	outboxes := make(map[string]*fakeOutbox)
	for _, id := range []string{"a", "b", "c"} {
		out := &fakeOutbox{}
		outboxes[id] = out
		s, err := reg.Create(id, id, out)
		require.NoError(t, err)
		require.NoError(t, router.Join(s, "general"))
		require.NoError(t, router.Join(s, "general"))
	}
	outsider := &fakeOutbox{}
	o, _ := reg.Create("z", "zed", outsider)
	require.NoError(t, router.Join(o, "random"))

	result := router.Broadcast("general", []byte("hello"), nil)

	assert.Equal(t, 3, result.Delivered)
	assert.Empty(t, result.Failed)
	for id, out := range outboxes {
		assert.Equal(t, [][]byte{[]byte("hello")}, out.received, "member %s", id)
	}
	assert.Empty(t, outsider.received)
}

func TestRouterBroadcastExcludesSender(t *testing.T) {
	reg, router := newTestRegistry()
	aOut, bOut := &fakeOutbox{}, &fakeOutbox{}
	a, _ := reg.Create("a", "alice", aOut)
	b, _ := reg.Create("b", "bob", bOut)
	require.NoError(t, router.Join(a, "general"))
	require.NoError(t, router.Join(b, "general"))

	result := router.Broadcast("general", []byte("typing"), a)

	assert.Equal(t, 1, result.Delivered)
	assert.Empty(t, aOut.received)
	assert.Len(t, bOut.received, 1)
}

func TestRouterBroadcastIsolatesFailures(t *testing.T) {
	reg, router := newTestRegistry()
	good := &fakeOutbox{}
	bad := &fakeOutbox{fail: true}
	g, _ := reg.Create("good", "good", good)
	b, _ := reg.Create("bad", "bad", bad)
	require.NoError(t, router.Join(g, "general"))
	require.NoError(t, router.Join(b, "general"))

	result := router.Broadcast("general", []byte("hi"), nil)

	assert.Equal(t, 1, result.Delivered)
	require.Len(t, result.Failed, 1)
	assert.Same(t, b, result.Failed[0])
	assert.Len(t, good.received, 1)
}

func TestRouterBroadcastToEmptyRoom(t *testing.T) {
	router := NewRouter(discardLogger())
	result := router.Broadcast("nobody-here", []byte("hi"), nil)
	assert.Zero(t, result.Delivered)
	assert.Empty(t, result.Failed)
}

func TestRouterBroadcastAfterDisconnect(t *testing.T) {
	reg, router := newTestRegistry()
	aOut, bOut := &fakeOutbox{}, &fakeOutbox{}
	a, _ := reg.Create("a", "alice", aOut)
	b, _ := reg.Create("b", "bob", bOut)
	for _, room := range []string{"general", "random"} {
		require.NoError(t, router.Join(a, room))
		require.NoError(t, router.Join(b, room))
	}

	reg.Remove("b")

	for _, room := range []string{"general", "random"} {
		router.Broadcast(room, []byte(room), nil)
	}
	assert.Len(t, aOut.received, 2)
	assert.Empty(t, bOut.received)
}

func TestRouterBroadcastPreservesOrderPerMember(t *testing.T) {
	reg, router := newTestRegistry()
	out := &fakeOutbox{}
	s, _ := reg.Create("a", "alice", out)
	require.NoError(t, router.Join(s, "general"))

	var want [][]byte
	for i := 0; i < 20; i++ {
		payload := []byte(fmt.Sprintf("msg-%d", i))
		want = append(want, payload)
		router.Broadcast("general", payload, nil)
	}
	assert.Equal(t, want, out.received)
}

func TestRouterLeaveAll(t *testing.T) {
	reg, router := newTestRegistry()
	s, _ := reg.Create("a", "alice", &fakeOutbox{})
	for _, room := range []string{"b", "a", "c"} {
		require.NoError(t, router.Join(s, room))
	}

	left := router.LeaveAll(s)

	assert.Equal(t, []string{"a", "b", "c"}, left)
	assert.Zero(t, router.RoomCount())
	assert.Nil(t, router.LeaveAll(nil))
}
