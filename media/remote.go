package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// RemoteStream collects the remote tracks that share an upstream stream ID.
// Tracks arrive one at a time from the peer connection; the stream is
// surfaced to the application once, on its first track.
type RemoteStream struct {
	mu     sync.RWMutex
	id     string
	tracks []*webrtc.TrackRemote
}

// NewRemoteStream creates a RemoteStream for the given upstream stream ID.
func NewRemoteStream(id string) *RemoteStream {
	return &RemoteStream{id: id}
}

// ID returns the upstream stream ID.
func (s *RemoteStream) ID() string {
	return s.id
}

// AddTrack appends a remote track to the stream.
func (s *RemoteStream) AddTrack(track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

// Tracks returns the remote tracks received so far.
func (s *RemoteStream) Tracks() []*webrtc.TrackRemote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*webrtc.TrackRemote, len(s.tracks))
	copy(out, s.tracks)
	return out
}
