// Package media contains local and remote media stream abstractions.
package media

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Track is a single local media track. Stop releases whatever capture
// source feeds the track; it must be safe to call more than once.
type Track interface {
	Local() webrtc.TrackLocal
	Stop() error
}

// Stream groups the local tracks that are attached to every peer
// connection. The stream is owned by the caller; the coordinator only stops
// its tracks on session teardown.
type Stream struct {
	mu      sync.Mutex
	id      string
	tracks  []Track
	stopped bool
}

// NewStream creates a new Stream from the given tracks.
func NewStream(id string, tracks ...Track) *Stream {
	return &Stream{
		id:     id,
		tracks: tracks,
	}
}

// ID returns the stream ID.
func (s *Stream) ID() string {
	return s.id
}

// Tracks returns the stream's tracks.
func (s *Stream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Stop stops every constituent track. Each track is attempted even if an
// earlier one fails; the collected errors are joined. Stopping twice is a
// no-op.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	tracks := make([]Track, len(s.tracks))
	copy(tracks, s.tracks)
	s.mu.Unlock()

	var errs []error
	for _, t := range tracks {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
