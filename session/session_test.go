package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/media"
	"huddle/peer"
	"huddle/types/client/request"
	"huddle/types/client/response"
	"huddle/types/entity"
)

// fakeConn is a peer.Connection that records what was done to it.
type fakeConn struct {
	mu         sync.Mutex
	signals    [][]byte
	replaces   int
	closes     int
	signalErr  error
	replaceErr error
	closeErr   error
	events     peer.Events
}

func (f *fakeConn) Signal(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, data)
	return f.signalErr
}

func (f *fakeConn) ReplaceStream(_ *media.Stream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	return f.replaceErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

// fakeFactory hands out fakeConns in creation order.
type fakeFactory struct {
	mu         sync.Mutex
	conns      []*fakeConn
	initiators []bool
	err        error
}

func (f *fakeFactory) NewConnection(initiator bool, _ *media.Stream, events peer.Events) (peer.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{events: events}
	f.conns = append(f.conns, conn)
	f.initiators = append(f.initiators, initiator)
	return conn, nil
}

// fakeSocket records written frames.
type fakeSocket struct {
	mu     sync.Mutex
	frames []request.Common
}

func (f *fakeSocket) Close() error { return nil }

func (f *fakeSocket) WriteJSON(data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data.(request.Common))
	return nil
}

func (f *fakeSocket) ReadJSON(_ any) error { return errors.New("not used") }

func (f *fakeSocket) sent() []request.Common {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]request.Common, len(f.frames))
	copy(out, f.frames)
	return out
}

type stubTrack struct {
	stops int
}

func (s *stubTrack) Local() webrtc.TrackLocal { return nil }
func (s *stubTrack) Stop() error {
	s.stops++
	return nil
}

func newTestCoordinator(config Config) (*Coordinator, *fakeFactory, *fakeSocket) {
	factory := &fakeFactory{}
	sock := &fakeSocket{}
	return New(config, factory, sock), factory, sock
}

func joined(connectionID, userID string, initiator bool) response.Joined {
	return response.Joined{
		Type:               response.JOINED,
		RemoteConnectionID: connectionID,
		Participant:        entity.Participant{ID: userID, Name: userID},
		IsInitiator:        initiator,
	}
}

func TestJoinedCreatesPeerAndFiresCallback(t *testing.T) {
	chimes := 0
	cod, factory, _ := newTestCoordinator(Config{Chime: func() { chimes++ }})

	var gotParticipant entity.Participant
	var gotInitiator bool
	cod.SetOnParticipantJoin(func(p entity.Participant, initiator bool) {
		gotParticipant = p
		gotInitiator = initiator
	})

	require.NoError(t, cod.Join("s1", media.NewStream("cam", &stubTrack{}), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	require.Len(t, factory.conns, 1)
	assert.False(t, factory.initiators[0])
	assert.Equal(t, "u1", cod.peers["c1"].userID)
	assert.Equal(t, 1, chimes)
	assert.Equal(t, "u1", gotParticipant.ID)
	assert.False(t, gotInitiator)
}

func TestJoinedAsInitiatorSkipsChime(t *testing.T) {
	chimes := 0
	cod, factory, _ := newTestCoordinator(Config{Chime: func() { chimes++ }})

	require.NoError(t, cod.Join("s1", media.NewStream("cam", &stubTrack{}), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", true))

	require.Len(t, factory.conns, 1)
	assert.True(t, factory.initiators[0])
	assert.Zero(t, chimes)
}

func TestJoinedBeforeLocalStreamIgnored(t *testing.T) {
	chimes := 0
	cod, factory, _ := newTestCoordinator(Config{Chime: func() { chimes++ }})
	fired := false
	cod.SetOnParticipantJoin(func(entity.Participant, bool) { fired = true })

	cod.handleJoined(joined("c1", "u1", false))

	assert.Empty(t, factory.conns)
	assert.Empty(t, cod.peers)
	assert.Zero(t, chimes)
	assert.False(t, fired)
}

func TestSignalFedIntoPeer(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	cod.handleSignal(response.Signal{From: "c1", Signal: payload})

	require.Len(t, factory.conns[0].signals, 1)
	assert.JSONEq(t, string(payload), string(factory.conns[0].signals[0]))
}

func TestSignalForUnknownConnectionIsNoOp(t *testing.T) {
	cod, _, _ := newTestCoordinator(Config{})
	cod.handleSignal(response.Signal{From: "ghost", Signal: json.RawMessage(`{}`)})
	assert.Empty(t, cod.peers)
}

func TestSignalErrorTearsDownThatPeerOnly(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))
	cod.handleJoined(joined("c2", "u2", false))
	factory.conns[0].signalErr = errors.New("bad sdp")

	cod.handleSignal(response.Signal{From: "c1", Signal: json.RawMessage(`{}`)})

	assert.NotContains(t, cod.peers, "c1")
	assert.Contains(t, cod.peers, "c2")
	assert.Equal(t, 1, factory.conns[0].closes)
	assert.Zero(t, factory.conns[1].closes)
}

func TestLeftTearsDownAndFiresCallback(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	var leftUser string
	cod.SetOnParticipantLeave(func(userID string) { leftUser = userID })

	cod.handleLeft(response.Left{RemoteConnectionID: "c1", UserID: "u1"})

	assert.Empty(t, cod.peers)
	assert.Equal(t, 1, factory.conns[0].closes)
	assert.Equal(t, "u1", leftUser)
}

func TestLeftForAbsentConnectionStillFiresCallback(t *testing.T) {
	cod, _, _ := newTestCoordinator(Config{})
	var leftUser string
	cod.SetOnParticipantLeave(func(userID string) { leftUser = userID })

	cod.handleLeft(response.Left{RemoteConnectionID: "c1", UserID: "u1"})

	assert.Equal(t, "u1", leftUser)
}

func TestLeaveClosesEveryPeerDespiteErrors(t *testing.T) {
	cod, factory, sock := newTestCoordinator(Config{})
	track := &stubTrack{}
	require.NoError(t, cod.Join("s1", media.NewStream("cam", track), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))
	cod.handleJoined(joined("c2", "u2", false))
	cod.handleJoined(joined("c3", "u3", false))
	factory.conns[1].closeErr = errors.New("already closed")

	require.NoError(t, cod.Leave())

	assert.Empty(t, cod.peers)
	for _, conn := range factory.conns {
		assert.Equal(t, 1, conn.closes)
	}
	assert.Equal(t, 1, track.stops)

	frames := sock.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, request.JOIN, frames[0].Type)
	assert.Equal(t, request.LEAVE, frames[1].Type)
}

func TestLeaveWithoutSessionIsNoOp(t *testing.T) {
	cod, _, sock := newTestCoordinator(Config{})
	require.NoError(t, cod.Leave())
	assert.Empty(t, sock.sent())
}

func TestEndEmitsThenCleansUp(t *testing.T) {
	cod, factory, sock := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	require.NoError(t, cod.End())

	assert.Empty(t, cod.peers)
	assert.Equal(t, 1, factory.conns[0].closes)

	frames := sock.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, request.JOIN, frames[0].Type)
	assert.Equal(t, request.END, frames[1].Type)
}

func TestEndedCleansUpWithoutEmitting(t *testing.T) {
	cod, factory, sock := newTestCoordinator(Config{})
	track := &stubTrack{}
	require.NoError(t, cod.Join("s1", media.NewStream("cam", track), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))
	before := len(sock.sent())

	cod.handleEnded()

	assert.Empty(t, cod.peers)
	assert.Equal(t, 1, factory.conns[0].closes)
	assert.Equal(t, 1, track.stops)
	assert.Len(t, sock.sent(), before)
}

func TestUpdateStreamReattachesEveryPeer(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))
	cod.handleJoined(joined("c2", "u2", false))
	cod.handleJoined(joined("c3", "u3", false))
	factory.conns[1].replaceErr = errors.New("renegotiation failed")

	require.NoError(t, cod.UpdateStream(media.NewStream("screen")))

	for _, conn := range factory.conns {
		assert.Equal(t, 1, conn.replaces)
	}
}

func TestRemoteStreamResolvesUserID(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	var gotUser string
	var gotStream *media.RemoteStream
	cod.SetOnParticipantStream(func(userID string, stream *media.RemoteStream) {
		gotUser = userID
		gotStream = stream
	})

	remote := media.NewRemoteStream("rs1")
	factory.conns[0].events.OnStream(remote)

	assert.Equal(t, "u1", gotUser)
	assert.Same(t, remote, gotStream)
}

func TestRemoteStreamBeforeJoinDropped(t *testing.T) {
	cod, _, _ := newTestCoordinator(Config{})
	fired := false
	cod.SetOnParticipantStream(func(string, *media.RemoteStream) { fired = true })

	events := cod.peerEvents("c1")
	events.OnStream(media.NewRemoteStream("rs1"))

	assert.False(t, fired)
}

func TestPeerSignalOutIsForwarded(t *testing.T) {
	cod, factory, sock := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	factory.conns[0].events.OnSignal([]byte(`{"type":"candidate"}`))

	frames := sock.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, request.SIGNAL, frames[1].Type)

	var payload request.Signal
	require.NoError(t, json.Unmarshal(frames[1].Payload, &payload))
	assert.Equal(t, "c1", payload.To)
	assert.JSONEq(t, `{"type":"candidate"}`, string(payload.Signal))
}

func TestPeerCloseEventTearsDown(t *testing.T) {
	cod, factory, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	cod.handleJoined(joined("c1", "u1", false))

	factory.conns[0].events.OnClose()
	assert.Empty(t, cod.peers)

	// double teardown is tolerated
	factory.conns[0].events.OnClose()
	assert.Equal(t, 1, factory.conns[0].closes)
}

func TestCallbackRegistrationOverwrites(t *testing.T) {
	cod, _, _ := newTestCoordinator(Config{})
	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))

	firstFired := false
	secondFired := false
	cod.SetOnParticipantJoin(func(entity.Participant, bool) { firstFired = true })
	cod.SetOnParticipantJoin(func(entity.Participant, bool) { secondFired = true })

	cod.handleJoined(joined("c1", "u1", false))

	assert.False(t, firstFired)
	assert.True(t, secondFired)
}

func TestWelcomeAssignsConnectionID(t *testing.T) {
	cod, _, sock := newTestCoordinator(Config{})
	raw, err := json.Marshal(response.Welcome{Type: response.WELCOME, ConnectionID: "c9"})
	require.NoError(t, err)
	require.NoError(t, cod.handleFrame(raw))
	assert.Equal(t, "c9", cod.connectionID)

	require.NoError(t, cod.Join("s1", media.NewStream("cam"), entity.User{ID: "me"}))
	var payload request.Join
	require.NoError(t, json.Unmarshal(sock.sent()[0].Payload, &payload))
	assert.Equal(t, "c9", payload.User.ConnectionID)
}

func TestHandleFrameRejectsUnknownType(t *testing.T) {
	cod, _, _ := newTestCoordinator(Config{})
	assert.Error(t, cod.handleFrame(json.RawMessage(`{"type":"DANCE"}`)))
	assert.Error(t, cod.handleFrame(json.RawMessage(`not json`)))
}
