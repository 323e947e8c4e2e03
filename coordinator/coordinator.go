// Package coordinator manages session membership and relays signaling
// payloads between the peers of a session.
package coordinator

import (
	"errors"

	"github.com/rs/zerolog/log"

	"huddle/broker"
	"huddle/database"
	"huddle/metric"
	"huddle/roster"
	"huddle/types/client/response"
	"huddle/types/message"
)

// Coordinator consumes client events from the broker, keeps the membership
// store and roster in sync, and fans membership changes out to the affected
// sockets. It alone assigns the initiator flag: a joiner initiates towards
// every member that was already in the session.
type Coordinator struct {
	config   Config
	broker   *broker.Broker
	database database.Database
	roster   *roster.Roster
	metric   *metric.Metrics
}

// New creates a new instance of Coordinator.
func New(c Config, b *broker.Broker, db database.Database, r *roster.Roster, m *metric.Metrics) *Coordinator {
	return &Coordinator{
		config:   c,
		broker:   b,
		database: db,
		roster:   r,
		metric:   m,
	}
}

// Start starts the Coordinator instance.
func (c *Coordinator) Start() {
	joinEvent := c.broker.Subscribe(broker.Client, broker.JOIN)
	leaveEvent := c.broker.Subscribe(broker.Client, broker.LEAVE)
	endEvent := c.broker.Subscribe(broker.Client, broker.END)
	signalEvent := c.broker.Subscribe(broker.Client, broker.SIGNAL)
	deactivateEvent := c.broker.Subscribe(broker.Client, broker.DEACTIVATE)
	for {
		select {
		case event := <-joinEvent.Receive():
			go c.handleJoin(event)
		case event := <-leaveEvent.Receive():
			go c.handleLeave(event)
		case event := <-endEvent.Receive():
			go c.handleEnd(event)
		case event := <-signalEvent.Receive():
			go c.handleSignal(event)
		case event := <-deactivateEvent.Receive():
			go c.handleDeactivate(event)
		}
	}
}

// handleJoin handles the join event. The new participant is announced to
// every existing member with is_initiator=false, while the new participant
// learns about each existing member with is_initiator=true.
func (c *Coordinator) handleJoin(event any) {
	msg, ok := event.(message.Join)
	if !ok {
		log.Error().Any("event", event).Msg("failed to parse join message")
		return
	}

	if c.config.MaxSessionSize > 0 && c.roster.Size(msg.SessionID) >= c.config.MaxSessionSize {
		log.Warn().Str("session", msg.SessionID).Str("user", msg.User.ID).Msg("session full, join ignored")
		return
	}

	// 01. Ensure the session exists. The first joiner becomes the owner.
	if _, err := c.database.EnsureSessionInfo(msg.SessionID, msg.User.ID); err != nil {
		log.Error().Err(err).Str("session", msg.SessionID).Msg("failed to ensure session")
		return
	}

	// 02. Snapshot the existing members before registering the joiner.
	members := c.roster.Members(msg.SessionID)

	joiner, err := c.database.CreateParticipantInfo(msg.SessionID, msg.User.ID, msg.User.Name, msg.ConnectionID)
	if err != nil {
		log.Error().Err(err).Str("connection", msg.ConnectionID).Msg("failed to create participant")
		return
	}
	c.roster.Add(msg.SessionID, msg.ConnectionID)

	c.metric.IncrementActiveParticipants()
	if len(members) == 0 {
		c.metric.IncrementActiveSessions()
	}

	// 03. Fan the join out in both directions.
	for _, memberConnID := range members {
		member, err := c.database.FindParticipantInfoByConnectionID(memberConnID)
		if err != nil {
			log.Error().Err(err).Str("connection", memberConnID).Msg("failed to find member")
			continue
		}
		if err := c.broker.Publish(broker.ClientSocket, broker.Detail(memberConnID), response.Joined{
			Type:               response.JOINED,
			RemoteConnectionID: msg.ConnectionID,
			Participant:        joiner.Entity(),
			IsInitiator:        false,
		}); err != nil {
			log.Error().Err(err).Str("connection", memberConnID).Msg("failed to publish joined message")
		}
		if err := c.broker.Publish(broker.ClientSocket, broker.Detail(msg.ConnectionID), response.Joined{
			Type:               response.JOINED,
			RemoteConnectionID: memberConnID,
			Participant:        member.Entity(),
			IsInitiator:        true,
		}); err != nil {
			log.Error().Err(err).Str("connection", msg.ConnectionID).Msg("failed to publish joined message")
		}
	}
}

// handleSignal handles the signal event. Payloads are relayed untouched to
// the addressed connection; sender and target must share a session.
func (c *Coordinator) handleSignal(event any) {
	msg, ok := event.(message.Signal)
	if !ok {
		log.Error().Any("event", event).Msg("failed to parse signal message")
		return
	}

	sender, err := c.database.FindParticipantInfoByConnectionID(msg.From)
	if err != nil {
		log.Warn().Err(err).Str("connection", msg.From).Msg("signal from unknown connection")
		return
	}
	target, err := c.database.FindParticipantInfoByConnectionID(msg.To)
	if err != nil {
		// The target may have already left. Expected race, drop quietly.
		log.Debug().Str("connection", msg.To).Msg("signal target gone")
		return
	}
	if sender.SessionID != target.SessionID {
		log.Warn().Str("from", msg.From).Str("to", msg.To).Msg("cross-session signal rejected")
		return
	}

	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(msg.To), response.Signal{
		Type:   response.SIGNAL,
		From:   msg.From,
		Signal: msg.Payload,
	}); err != nil {
		log.Error().Err(err).Str("connection", msg.To).Msg("failed to publish signal message")
		return
	}
	c.metric.IncrementRelayedSignals()
}

// handleLeave handles an explicit leave request.
func (c *Coordinator) handleLeave(event any) {
	msg, ok := event.(message.Leave)
	if !ok {
		log.Error().Any("event", event).Msg("failed to parse leave message")
		return
	}
	c.removeParticipant(msg.ConnectionID)
}

// handleDeactivate handles a socket connection going away. Socket loss is
// the single source of truth for a client being gone, so it is treated the
// same as an explicit leave.
func (c *Coordinator) handleDeactivate(event any) {
	msg, ok := event.(message.Deactivate)
	if !ok {
		log.Error().Any("event", event).Msg("failed to parse deactivate message")
		return
	}
	c.removeParticipant(msg.ConnectionID)
}

// removeParticipant drops a participant and notifies the remaining members.
// Unknown connections are ignored; the socket may never have joined.
func (c *Coordinator) removeParticipant(connectionID string) {
	participant, err := c.database.FindParticipantInfoByConnectionID(connectionID)
	if err != nil {
		if errors.Is(err, database.ErrParticipantNotFound) {
			return
		}
		log.Error().Err(err).Str("connection", connectionID).Msg("failed to find participant")
		return
	}

	if err := c.database.DeleteParticipantInfoByConnectionID(connectionID); err != nil {
		log.Error().Err(err).Str("connection", connectionID).Msg("failed to delete participant")
		return
	}
	c.roster.Remove(participant.SessionID, connectionID)
	c.metric.DecrementActiveParticipants()

	remaining := c.roster.Members(participant.SessionID)
	for _, memberConnID := range remaining {
		if err := c.broker.Publish(broker.ClientSocket, broker.Detail(memberConnID), response.Left{
			Type:               response.LEFT,
			RemoteConnectionID: connectionID,
			UserID:             participant.UserID,
		}); err != nil {
			log.Error().Err(err).Str("connection", memberConnID).Msg("failed to publish left message")
		}
	}

	if len(remaining) == 0 {
		c.dropSession(participant.SessionID)
	}
}

// handleEnd handles the end event. Only the session owner may end the
// session; anyone else is logged and ignored.
func (c *Coordinator) handleEnd(event any) {
	msg, ok := event.(message.End)
	if !ok {
		log.Error().Any("event", event).Msg("failed to parse end message")
		return
	}

	sender, err := c.database.FindParticipantInfoByConnectionID(msg.ConnectionID)
	if err != nil {
		log.Warn().Err(err).Str("connection", msg.ConnectionID).Msg("end from unknown connection")
		return
	}
	session, err := c.database.FindSessionInfoByID(sender.SessionID)
	if err != nil {
		log.Error().Err(err).Str("session", sender.SessionID).Msg("failed to find session")
		return
	}
	if !session.IsOwner(sender.UserID) {
		log.Warn().Str("session", session.ID).Str("user", sender.UserID).Msg("end from non-owner ignored")
		return
	}

	for _, memberConnID := range c.roster.Members(session.ID) {
		if err := c.broker.Publish(broker.ClientSocket, broker.Detail(memberConnID), response.Ended{
			Type: response.ENDED,
		}); err != nil {
			log.Error().Err(err).Str("connection", memberConnID).Msg("failed to publish ended message")
		}
		if err := c.database.DeleteParticipantInfoByConnectionID(memberConnID); err != nil {
			log.Error().Err(err).Str("connection", memberConnID).Msg("failed to delete participant")
		}
		c.metric.DecrementActiveParticipants()
	}

	c.dropSession(session.ID)
}

// dropSession clears the roster and deletes the session record.
func (c *Coordinator) dropSession(sessionID string) {
	c.roster.Clear(sessionID)
	if err := c.database.DeleteSessionInfoByID(sessionID); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to delete session")
		return
	}
	c.metric.DecrementActiveSessions()
}
