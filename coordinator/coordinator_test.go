package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"huddle/broker"
	"huddle/database"
	"huddle/database/memory"
	"huddle/metric"
	"huddle/roster"
	"huddle/types/client/response"
	"huddle/types/entity"
	"huddle/types/message"
)

func newTestCoordinator(config Config) (*Coordinator, *broker.Broker) {
	brk := broker.New()
	db := memory.New(database.Config{})
	return New(config, brk, db, roster.New(), metric.New(metric.Config{})), brk
}

func receiveWithin(t *testing.T, ch <-chan any, d time.Duration) any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(d):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertSilent(t *testing.T, ch <-chan any) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func join(c *Coordinator, sessionID, userID, name, connID string) {
	c.handleJoin(message.Join{
		SessionID:    sessionID,
		ConnectionID: connID,
		User:         entity.User{ID: userID, Name: name, ConnectionID: connID},
	})
}

func TestJoinFansOutBothDirections(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	aliceSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c1"))
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "alice", "Alice", "c1")
	assertSilent(t, aliceSock.Receive())

	join(cod, "s1", "bob", "Bob", "c2")

	toAlice := receiveWithin(t, aliceSock.Receive(), time.Second).(response.Joined)
	assert.Equal(t, response.JOINED, toAlice.Type)
	assert.Equal(t, "c2", toAlice.RemoteConnectionID)
	assert.Equal(t, "bob", toAlice.Participant.ID)
	assert.False(t, toAlice.IsInitiator)

	toBob := receiveWithin(t, bobSock.Receive(), time.Second).(response.Joined)
	assert.Equal(t, "c1", toBob.RemoteConnectionID)
	assert.Equal(t, "alice", toBob.Participant.ID)
	assert.True(t, toBob.IsInitiator)
}

func TestJoinBeyondMaxSessionSizeIgnored(t *testing.T) {
	cod, brk := newTestCoordinator(Config{MaxSessionSize: 1})
	aliceSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c1"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s1", "bob", "Bob", "c2")

	assertSilent(t, aliceSock.Receive())
}

func TestSignalRelay(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s1", "bob", "Bob", "c2")
	receiveWithin(t, bobSock.Receive(), time.Second) // joined frame

	cod.handleSignal(message.Signal{From: "c1", To: "c2", Payload: []byte(`{"type":"offer"}`)})

	relayed := receiveWithin(t, bobSock.Receive(), time.Second).(response.Signal)
	assert.Equal(t, response.SIGNAL, relayed.Type)
	assert.Equal(t, "c1", relayed.From)
	assert.JSONEq(t, `{"type":"offer"}`, string(relayed.Signal))
}

func TestSignalFromUnknownConnectionDropped(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "bob", "Bob", "c2")
	cod.handleSignal(message.Signal{From: "ghost", To: "c2", Payload: []byte(`{}`)})

	assertSilent(t, bobSock.Receive())
}

func TestCrossSessionSignalRejected(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s2", "bob", "Bob", "c2")

	cod.handleSignal(message.Signal{From: "c1", To: "c2", Payload: []byte(`{}`)})
	assertSilent(t, bobSock.Receive())
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	aliceSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c1"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s1", "bob", "Bob", "c2")
	receiveWithin(t, aliceSock.Receive(), time.Second) // joined frame

	cod.handleLeave(message.Leave{SessionID: "s1", ConnectionID: "c2"})

	left := receiveWithin(t, aliceSock.Receive(), time.Second).(response.Left)
	assert.Equal(t, response.LEFT, left.Type)
	assert.Equal(t, "c2", left.RemoteConnectionID)
	assert.Equal(t, "bob", left.UserID)
}

func TestLastLeaveDropsSession(t *testing.T) {
	cod, _ := newTestCoordinator(Config{})

	join(cod, "s1", "alice", "Alice", "c1")
	cod.handleLeave(message.Leave{SessionID: "s1", ConnectionID: "c1"})

	_, err := cod.database.FindSessionInfoByID("s1")
	assert.ErrorIs(t, err, database.ErrSessionNotFound)
	assert.Equal(t, 0, cod.roster.Size("s1"))
}

func TestDeactivateOfUnknownConnectionIgnored(t *testing.T) {
	cod, _ := newTestCoordinator(Config{})
	cod.handleDeactivate(message.Deactivate{ConnectionID: "never-joined"})
}

func TestEndByOwnerBroadcastsEnded(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	aliceSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c1"))
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s1", "bob", "Bob", "c2")
	receiveWithin(t, aliceSock.Receive(), time.Second)
	receiveWithin(t, bobSock.Receive(), time.Second)

	cod.handleEnd(message.End{SessionID: "s1", ConnectionID: "c1"})

	assert.Equal(t, response.ENDED, receiveWithin(t, aliceSock.Receive(), time.Second).(response.Ended).Type)
	assert.Equal(t, response.ENDED, receiveWithin(t, bobSock.Receive(), time.Second).(response.Ended).Type)

	_, err := cod.database.FindSessionInfoByID("s1")
	assert.ErrorIs(t, err, database.ErrSessionNotFound)
}

func TestEndByNonOwnerIgnored(t *testing.T) {
	cod, brk := newTestCoordinator(Config{})
	aliceSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c1"))
	bobSock := brk.Subscribe(broker.ClientSocket, broker.Detail("c2"))

	join(cod, "s1", "alice", "Alice", "c1")
	join(cod, "s1", "bob", "Bob", "c2")
	receiveWithin(t, aliceSock.Receive(), time.Second)
	receiveWithin(t, bobSock.Receive(), time.Second)

	cod.handleEnd(message.End{SessionID: "s1", ConnectionID: "c2"})

	assertSilent(t, aliceSock.Receive())
	_, err := cod.database.FindSessionInfoByID("s1")
	assert.NoError(t, err)
}

func TestMalformedEventDoesNotPanic(t *testing.T) {
	cod, _ := newTestCoordinator(Config{})
	cod.handleJoin("not a join")
	cod.handleLeave(42)
	cod.handleEnd(nil)
	cod.handleSignal(struct{}{})
	cod.handleDeactivate(3.14)
}
