package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"huddle/media"
)

// signal types carried in the opaque payload. Only the two peers ever
// interpret these; the signaling server relays them untouched.
const (
	signalOffer     = "offer"
	signalAnswer    = "answer"
	signalCandidate = "candidate"
)

// ErrConnectionClosed is returned when signaling into a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// envelope is the JSON shape of a signaling payload.
type envelope struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// WebRTCFactory creates pion-backed peer connections.
type WebRTCFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewWebRTCFactory creates a factory with default codecs and interceptors
// registered.
func NewWebRTCFactory(config Config) (*WebRTCFactory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}
	settings := webrtc.SettingEngine{}
	if config.MinUDPPort != 0 || config.MaxUDPPort != 0 {
		if err := settings.SetEphemeralUDPPortRange(config.MinUDPPort, config.MaxUDPPort); err != nil {
			return nil, fmt.Errorf("failed to set UDP port range: %w", err)
		}
	}

	return &WebRTCFactory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(registry),
			webrtc.WithSettingEngine(settings),
		),
		config: config.webrtcConfiguration(),
	}, nil
}

// WebRTCConnection is a pion-backed Connection.
type WebRTCConnection struct {
	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	events    Events
	initiator bool
	closed    bool
	closeOnce sync.Once
	eventOnce sync.Once
	senders   []*webrtc.RTPSender
	remotes   map[string]*media.RemoteStream

	// candidates received before the remote description is set
	pending []webrtc.ICECandidateInit
}

// NewConnection creates a peer connection with the local stream attached.
// The initiator side creates and emits the offer immediately.
func (f *WebRTCFactory) NewConnection(initiator bool, stream *media.Stream, events Events) (Connection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	c := &WebRTCConnection{
		pc:        pc,
		events:    events,
		initiator: initiator,
		remotes:   make(map[string]*media.RemoteStream),
	}

	if stream != nil {
		for _, track := range stream.Tracks() {
			if err := c.addTrack(track); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		c.emit(envelope{Type: signalCandidate, Candidate: &init})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.handleRemoteTrack(remote)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.fireClose()
		default:
		}
	})

	if initiator {
		go func() {
			if err := c.negotiate(); err != nil {
				log.Error().Err(err).Msg("failed to create offer")
				c.fireClose()
			}
		}()
	}
	return c, nil
}

// addTrack attaches a local track and drains its RTCP stream.
func (c *WebRTCConnection) addTrack(track media.Track) error {
	sender, err := c.pc.AddTrack(track.Local())
	if err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	c.senders = append(c.senders, sender)
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()
	return nil
}

// negotiate creates a local offer and emits it.
func (c *WebRTCConnection) negotiate() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	c.emit(envelope{Type: signalOffer, SDP: offer.SDP})
	return nil
}

// Signal feeds a payload from the remote side into the connection.
func (c *WebRTCConnection) Signal(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.mu.Unlock()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse signal payload: %w", err)
	}

	switch env.Type {
	case signalOffer:
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer, SDP: env.SDP,
		}); err != nil {
			return fmt.Errorf("failed to set remote offer: %w", err)
		}
		if err := c.drainPending(); err != nil {
			return err
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}
		c.emit(envelope{Type: signalAnswer, SDP: answer.SDP})
		return nil
	case signalAnswer:
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer, SDP: env.SDP,
		}); err != nil {
			return fmt.Errorf("failed to set remote answer: %w", err)
		}
		return c.drainPending()
	case signalCandidate:
		if env.Candidate == nil {
			return errors.New("candidate signal without candidate")
		}
		if c.pc.RemoteDescription() == nil {
			c.mu.Lock()
			c.pending = append(c.pending, *env.Candidate)
			c.mu.Unlock()
			return nil
		}
		if err := c.pc.AddICECandidate(*env.Candidate); err != nil {
			return fmt.Errorf("failed to add candidate: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown signal type: %s", env.Type)
	}
}

// drainPending adds the candidates that arrived before the remote
// description was set.
func (c *WebRTCConnection) drainPending() error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.pc.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("failed to add pending candidate: %w", err)
		}
	}
	return nil
}

// ReplaceStream detaches the current outbound tracks and attaches the
// given stream's tracks. The initiator side renegotiates afterwards.
func (c *WebRTCConnection) ReplaceStream(stream *media.Stream) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	senders := c.senders
	c.senders = nil
	c.mu.Unlock()

	for _, sender := range senders {
		if err := c.pc.RemoveTrack(sender); err != nil {
			return fmt.Errorf("failed to remove track: %w", err)
		}
	}
	if stream != nil {
		for _, track := range stream.Tracks() {
			if err := c.addTrack(track); err != nil {
				return err
			}
		}
	}
	if c.initiator {
		go func() {
			if err := c.negotiate(); err != nil {
				log.Error().Err(err).Msg("failed to renegotiate")
			}
		}()
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (c *WebRTCConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	var err error
	c.closeOnce.Do(func() {
		err = c.pc.Close()
	})
	return err
}

// handleRemoteTrack groups remote tracks by stream ID and surfaces each
// stream once, on its first track.
func (c *WebRTCConnection) handleRemoteTrack(remote *webrtc.TrackRemote) {
	c.mu.Lock()
	stream, known := c.remotes[remote.StreamID()]
	if !known {
		stream = media.NewRemoteStream(remote.StreamID())
		c.remotes[remote.StreamID()] = stream
	}
	stream.AddTrack(remote)
	c.mu.Unlock()

	if !known && c.events.OnStream != nil {
		c.events.OnStream(stream)
	}
}

// emit marshals and delivers an outbound signaling payload.
func (c *WebRTCConnection) emit(env envelope) {
	if c.events.OnSignal == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal signal payload")
		return
	}
	c.events.OnSignal(data)
}

// fireClose delivers OnClose exactly once.
func (c *WebRTCConnection) fireClose() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.eventOnce.Do(func() {
		if c.events.OnClose != nil {
			c.events.OnClose()
		}
	})
}
