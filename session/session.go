// Package session contains the client-side coordinator that bridges the
// signaling socket with per-participant peer connections.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"huddle/media"
	"huddle/peer"
	"huddle/pkg/socket"
	"huddle/types/client/request"
	"huddle/types/client/response"
	"huddle/types/entity"
)

// remotePeer is the per-participant record. Keeping the user ID and the
// connection in one record keyed by connection ID means the two can never
// fall out of sync.
type remotePeer struct {
	userID string
	conn   peer.Connection
}

// Coordinator maintains one peer connection per remote participant,
// driven by frames from the signaling socket. All state is guarded by a
// single mutex so that each event is handled to completion before the
// next mutates shared state; registered callbacks are always invoked
// outside the lock.
type Coordinator struct {
	config  Config
	factory peer.Factory
	conn    socket.Socket

	writeMu sync.Mutex // serializes socket writes

	mu           sync.Mutex
	connectionID string
	sessionID    string
	localUser    entity.User
	localStream  *media.Stream
	peers        map[string]*remotePeer

	onParticipantStream func(userID string, stream *media.RemoteStream)
	onParticipantJoin   func(participant entity.Participant, initiator bool)
	onParticipantLeave  func(userID string)
}

// New creates a new Coordinator on an established signaling socket.
func New(config Config, factory peer.Factory, conn socket.Socket) *Coordinator {
	return &Coordinator{
		config:  config,
		factory: factory,
		conn:    conn,
		peers:   make(map[string]*remotePeer),
	}
}

// Dial connects to the signaling server and creates a Coordinator backed
// by pion peer connections.
func Dial(config Config) (*Coordinator, error) {
	factory, err := peer.NewWebRTCFactory(config.Peer)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer factory: %w", err)
	}
	conn, err := socket.Dial(config.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	return New(config, factory, conn), nil
}

// SetOnParticipantStream registers the remote stream callback. The new
// callback replaces any previously registered one.
func (c *Coordinator) SetOnParticipantStream(f func(userID string, stream *media.RemoteStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onParticipantStream = f
}

// SetOnParticipantJoin registers the participant join callback. The new
// callback replaces any previously registered one.
func (c *Coordinator) SetOnParticipantJoin(f func(participant entity.Participant, initiator bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onParticipantJoin = f
}

// SetOnParticipantLeave registers the participant leave callback. The new
// callback replaces any previously registered one.
func (c *Coordinator) SetOnParticipantLeave(f func(userID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onParticipantLeave = f
}

// Join records the local stream and asks the server to add the local user
// to the session. Completion is asynchronous: the server answers with one
// joined frame per member already in the session.
func (c *Coordinator) Join(sessionID string, stream *media.Stream, user entity.User) error {
	c.mu.Lock()
	c.sessionID = sessionID
	c.localStream = stream
	c.localUser = user
	user.ConnectionID = c.connectionID
	c.mu.Unlock()

	return c.send(request.JOIN, request.Join{
		SessionID: sessionID,
		User:      user,
	})
}

// Leave tears down every peer connection, stops the local stream, and
// notifies the server. Calling with no active session is a no-op.
func (c *Coordinator) Leave() error {
	if !c.cleanup() {
		return nil
	}
	return c.send(request.LEAVE, request.Leave{})
}

// End asks the server to end the session for every member, then performs
// the same cleanup as Leave. The server enforces that only the session
// owner may end it; no check happens here.
func (c *Coordinator) End() error {
	if err := c.send(request.END, request.End{}); err != nil {
		return err
	}
	c.cleanup()
	return nil
}

// UpdateStream replaces the local stream and reattaches it on every peer
// connection. A failure on one peer is logged and does not block the rest.
func (c *Coordinator) UpdateStream(stream *media.Stream) error {
	c.mu.Lock()
	c.localStream = stream
	conns := make(map[string]peer.Connection, len(c.peers))
	for connectionID, rec := range c.peers {
		conns[connectionID] = rec.conn
	}
	c.mu.Unlock()

	for connectionID, conn := range conns {
		if err := conn.ReplaceStream(stream); err != nil {
			log.Warn().Err(err).Str("connection", connectionID).Msg("failed to replace stream")
		}
	}
	return nil
}

// Close closes the signaling socket. The server treats socket loss the
// same as an explicit leave.
func (c *Coordinator) Close() error {
	return c.conn.Close()
}

// Run reads frames from the signaling socket until it fails. Frame
// handling errors are logged and never stop the loop; only socket loss
// ends it.
func (c *Coordinator) Run() error {
	for {
		var raw json.RawMessage
		if err := c.conn.ReadJSON(&raw); err != nil {
			return fmt.Errorf("signaling socket closed: %w", err)
		}
		if err := c.handleFrame(raw); err != nil {
			log.Warn().Err(err).Msg("failed to handle frame")
		}
	}
}

// handleFrame dispatches one frame from the signaling socket.
func (c *Coordinator) handleFrame(raw json.RawMessage) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("failed to parse frame: %w", err)
	}

	switch probe.Type {
	case response.WELCOME:
		var res response.Welcome
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("failed to parse welcome frame: %w", err)
		}
		c.handleWelcome(res)
	case response.JOINED:
		var res response.Joined
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("failed to parse joined frame: %w", err)
		}
		c.handleJoined(res)
	case response.SIGNAL:
		var res response.Signal
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("failed to parse signal frame: %w", err)
		}
		c.handleSignal(res)
	case response.LEFT:
		var res response.Left
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("failed to parse left frame: %w", err)
		}
		c.handleLeft(res)
	case response.ENDED:
		c.handleEnded()
	default:
		return fmt.Errorf("unknown frame type: %s", probe.Type)
	}
	return nil
}

// handleWelcome stores the server-assigned connection ID.
func (c *Coordinator) handleWelcome(res response.Welcome) {
	c.mu.Lock()
	c.connectionID = res.ConnectionID
	c.mu.Unlock()
}

// handleJoined creates the peer connection for a newly announced remote
// participant. Without a local stream the frame is ignored entirely, so no
// partial state is created before local media is ready.
func (c *Coordinator) handleJoined(res response.Joined) {
	c.mu.Lock()
	if c.localStream == nil {
		c.mu.Unlock()
		log.Debug().Str("connection", res.RemoteConnectionID).Msg("joined frame before local stream, ignored")
		return
	}

	connectionID := res.RemoteConnectionID
	conn, err := c.factory.NewConnection(res.IsInitiator, c.localStream, c.peerEvents(connectionID))
	if err != nil {
		c.mu.Unlock()
		log.Error().Err(err).Str("connection", connectionID).Msg("failed to create peer connection")
		return
	}
	c.peers[connectionID] = &remotePeer{
		userID: res.Participant.ID,
		conn:   conn,
	}
	chime := c.config.Chime
	joinCallback := c.onParticipantJoin
	c.mu.Unlock()

	if !res.IsInitiator && chime != nil {
		chime()
	}
	if joinCallback != nil {
		joinCallback(res.Participant, res.IsInitiator)
	}
}

// handleSignal feeds a relayed payload into the addressed peer connection.
// An unknown connection ID is an expected race with teardown, not an
// error. A connection that rejects its payload is torn down alone; the
// rest of the session is untouched.
func (c *Coordinator) handleSignal(res response.Signal) {
	c.mu.Lock()
	rec, ok := c.peers[res.From]
	c.mu.Unlock()
	if !ok {
		return
	}

	if err := rec.conn.Signal(res.Signal); err != nil {
		log.Warn().Err(err).Str("connection", res.From).Msg("peer rejected signal, tearing down")
		c.teardownPeer(res.From)
	}
}

// handleLeft tears down the leaver's peer connection. The leave callback
// fires with the user ID whether or not a connection still existed.
func (c *Coordinator) handleLeft(res response.Left) {
	c.mu.Lock()
	rec, ok := c.peers[res.RemoteConnectionID]
	delete(c.peers, res.RemoteConnectionID)
	leaveCallback := c.onParticipantLeave
	c.mu.Unlock()

	if ok {
		if err := rec.conn.Close(); err != nil {
			log.Debug().Err(err).Str("connection", res.RemoteConnectionID).Msg("failed to close peer connection")
		}
	}
	if leaveCallback != nil {
		leaveCallback(res.UserID)
	}
}

// handleEnded performs full cleanup without emitting anything back to the
// server; the session is already gone.
func (c *Coordinator) handleEnded() {
	c.cleanup()
}

// peerEvents builds the event callbacks for one peer connection.
func (c *Coordinator) peerEvents(connectionID string) peer.Events {
	return peer.Events{
		OnSignal: func(data []byte) {
			if err := c.send(request.SIGNAL, request.Signal{
				To:     connectionID,
				Signal: data,
			}); err != nil {
				log.Warn().Err(err).Str("connection", connectionID).Msg("failed to send signal")
			}
		},
		OnStream: func(stream *media.RemoteStream) {
			c.mu.Lock()
			rec, ok := c.peers[connectionID]
			streamCallback := c.onParticipantStream
			c.mu.Unlock()
			if !ok {
				log.Debug().Str("connection", connectionID).Msg("stream from unknown connection, dropped")
				return
			}
			if streamCallback != nil {
				streamCallback(rec.userID, stream)
			}
		},
		OnClose: func() {
			c.teardownPeer(connectionID)
		},
	}
}

// teardownPeer removes and closes a single peer connection. Tolerates
// double teardown.
func (c *Coordinator) teardownPeer(connectionID string) {
	c.mu.Lock()
	rec, ok := c.peers[connectionID]
	delete(c.peers, connectionID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := rec.conn.Close(); err != nil {
		log.Debug().Err(err).Str("connection", connectionID).Msg("failed to close peer connection")
	}
}

// cleanup tears down every peer connection and stops the local stream. It
// reports whether there was a session to clean up. Teardown failures are
// logged; every connection gets its close attempt regardless.
func (c *Coordinator) cleanup() bool {
	c.mu.Lock()
	if c.sessionID == "" && len(c.peers) == 0 && c.localStream == nil {
		c.mu.Unlock()
		return false
	}
	peers := c.peers
	stream := c.localStream
	c.peers = make(map[string]*remotePeer)
	c.localStream = nil
	c.sessionID = ""
	c.mu.Unlock()

	for connectionID, rec := range peers {
		if err := rec.conn.Close(); err != nil {
			log.Debug().Err(err).Str("connection", connectionID).Msg("failed to close peer connection")
		}
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			log.Debug().Err(err).Msg("failed to stop local stream")
		}
	}
	return true
}

// send writes one request frame. Socket writes are serialized because
// peer connections emit signaling payloads from their own goroutines.
func (c *Coordinator) send(requestType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", requestType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(request.Common{
		Type:    requestType,
		Payload: raw,
	}); err != nil {
		return fmt.Errorf("failed to send %s request: %w", requestType, err)
	}
	return nil
}
