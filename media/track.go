package media

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RTPTrack is a local Track backed by a static RTP track. The capture
// source pushes packets through WriteRTP; stop tears the source down.
type RTPTrack struct {
	mu      sync.Mutex
	track   *webrtc.TrackLocalStaticRTP
	stop    func() error
	stopped bool
}

// NewRTPTrack creates a local RTP track. stop may be nil when the track has
// no capture source to release.
func NewRTPTrack(capability webrtc.RTPCodecCapability, id, streamID string, stop func() error) (*RTPTrack, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(capability, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create local track: %w", err)
	}
	return &RTPTrack{
		track: track,
		stop:  stop,
	}, nil
}

// Local returns the underlying webrtc track for attachment.
func (t *RTPTrack) Local() webrtc.TrackLocal {
	return t.track
}

// WriteRTP writes a packet to every bound peer connection.
func (t *RTPTrack) WriteRTP(p *rtp.Packet) error {
	return t.track.WriteRTP(p)
}

// Stop releases the capture source. Safe to call more than once.
func (t *RTPTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.stop == nil {
		t.stopped = true
		return nil
	}
	t.stopped = true
	return t.stop()
}
