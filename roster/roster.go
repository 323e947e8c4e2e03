// Package roster tracks per-session membership in join order.
package roster

import (
	"sync"
	"sync/atomic"

	"github.com/wangjia184/sortedset"
)

// sessionSet manages a single session's sorted set and its lock
type sessionSet struct {
	mutex sync.RWMutex
	set   *sortedset.SortedSet
}

// Roster manages the join-ordered member sets for each session. Members are
// keyed by connection ID and scored by join sequence, so enumeration always
// yields the session's members oldest first.
type Roster struct {
	globalMutex sync.RWMutex
	sets        map[string]*sessionSet
	nextSeq     atomic.Int64
}

// New initializes a new Roster.
func New() *Roster {
	return &Roster{
		sets: make(map[string]*sessionSet),
	}
}

// getOrCreateSet ensures a sessionSet exists for the given sessionID
func (r *Roster) getOrCreateSet(sessionID string) *sessionSet {
	r.globalMutex.RLock()
	if ss, exists := r.sets[sessionID]; exists {
		r.globalMutex.RUnlock()
		return ss
	}
	r.globalMutex.RUnlock()

	r.globalMutex.Lock()
	defer r.globalMutex.Unlock()
	ss, exists := r.sets[sessionID]
	if !exists {
		ss = &sessionSet{
			set: sortedset.New(),
		}
		r.sets[sessionID] = ss
	}
	return ss
}

// Add inserts a connection into the session's member set. Re-adding an
// existing connection keeps its original join position.
func (r *Roster) Add(sessionID, connectionID string) {
	ss := r.getOrCreateSet(sessionID)

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.set.GetByKey(connectionID) != nil {
		return
	}
	ss.set.AddOrUpdate(connectionID, sortedset.SCORE(r.nextSeq.Add(1)), nil)
}

// Remove deletes a connection from the session's member set. Removing an
// absent connection is a no-op.
func (r *Roster) Remove(sessionID, connectionID string) {
	ss := r.getOrCreateSet(sessionID)

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	ss.set.Remove(connectionID)
}

// Members returns the session's connection IDs in join order.
func (r *Roster) Members(sessionID string) []string {
	ss := r.getOrCreateSet(sessionID)

	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	nodes := ss.set.GetByRankRange(1, -1, false)
	members := make([]string, 0, len(nodes))
	for _, node := range nodes {
		members = append(members, node.Key())
	}
	return members
}

// Size returns the number of members in the session.
func (r *Roster) Size(sessionID string) int {
	ss := r.getOrCreateSet(sessionID)

	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	return ss.set.GetCount()
}

// Clear drops the whole session set.
func (r *Roster) Clear(sessionID string) {
	r.globalMutex.Lock()
	defer r.globalMutex.Unlock()

	delete(r.sets, sessionID)
}
