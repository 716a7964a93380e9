package websocket

import (
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"studysync/pkg/types"
)

func boundConn(t *testing.T, actorID, role, sessionID string) (*Connection, *gws.Conn) {
	t.Helper()
	conn, client := newConnPair(t, 10)
	conn.Bind(types.Actor{ID: actorID, Role: role, DisplayName: actorID}, sessionID)
	return conn, client
}

func TestRegisterRequiresBinding(t *testing.T) {
	r := NewRooms(nil)

	require.ErrorIs(t, r.Register(nil), ErrNilConnection)

	conn, _ := newConnPair(t, 10)
	require.ErrorIs(t, r.Register(conn), ErrConnectionNotBound)
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRooms(nil)
	conn, _ := boundConn(t, "alice", types.RoleStudent, "s1")

	require.NoError(t, r.Register(conn))

	got, ok := r.Get("alice")
	require.True(t, ok)
	require.Same(t, conn, got)

	require.Len(t, r.SessionConnections("s1"), 1)
	require.Empty(t, r.SessionConnections("s2"))

	stats := r.Stats()
	require.Equal(t, 1, stats["total_connections"])
	require.Equal(t, 1, stats["active_rooms"])
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	r := NewRooms(nil)
	old, _ := boundConn(t, "alice", types.RoleStudent, "s1")
	replacement, _ := boundConn(t, "alice", types.RoleStudent, "s1")

	require.NoError(t, r.Register(old))
	require.NoError(t, r.Register(replacement))

	got, ok := r.Get("alice")
	require.True(t, ok)
	require.Same(t, replacement, got)
	require.Equal(t, 1, r.Stats()["total_connections"])

	// The replaced connection is closed asynchronously.
	require.Eventually(t, func() bool {
		select {
		case <-old.Done():
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Unregistering the stale connection must not evict the replacement.
	r.Unregister(old)
	_, ok = r.Get("alice")
	require.True(t, ok)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRooms(nil)
	conn, _ := boundConn(t, "alice", types.RoleStudent, "s1")
	require.NoError(t, r.Register(conn))

	r.Unregister(conn)
	r.Unregister(conn)
	r.Unregister(nil)

	_, ok := r.Get("alice")
	require.False(t, ok)
	require.Equal(t, 0, r.Stats()["active_rooms"])
}

func TestBroadcastToSessionExcludesSender(t *testing.T) {
	r := NewRooms(nil)
	aliceConn, aliceClient := boundConn(t, "alice", types.RoleStudent, "s1")
	bobConn, bobClient := boundConn(t, "bob", types.RoleStudent, "s1")
	eveConn, eveClient := boundConn(t, "eve", types.RoleStudent, "other")

	require.NoError(t, r.Register(aliceConn))
	require.NoError(t, r.Register(bobConn))
	require.NoError(t, r.Register(eveConn))

	msg := &types.SyncMessage{
		EventType: types.EventProgressSync,
		SessionID: "s1",
		Timestamp: time.Now(),
	}
	r.BroadcastToSession("s1", msg, "alice")

	var got types.SyncMessage
	readJSON(t, bobClient, &got)
	require.Equal(t, types.EventProgressSync, got.EventType)

	// Neither the excluded sender nor the other room hears anything.
	for _, client := range []*gws.Conn{aliceClient, eveClient} {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, _, err := client.ReadMessage()
		require.Error(t, err)
	}
}

func TestBroadcastSurvivesDeadConnection(t *testing.T) {
	r := NewRooms(nil)
	aliceConn, _ := boundConn(t, "alice", types.RoleStudent, "s1")
	bobConn, bobClient := boundConn(t, "bob", types.RoleStudent, "s1")

	require.NoError(t, r.Register(aliceConn))
	require.NoError(t, r.Register(bobConn))
	require.NoError(t, aliceConn.Close())

	r.BroadcastToSession("s1", &types.SyncMessage{
		EventType: types.EventContentUpdate,
		SessionID: "s1",
	}, "")

	var got types.SyncMessage
	readJSON(t, bobClient, &got)
	require.Equal(t, types.EventContentUpdate, got.EventType)
}
