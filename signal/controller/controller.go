// Package controller handles socket requests from meeting clients.
package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"

	"huddle/broker"
	"huddle/broker/subscription"
	"huddle/metric"
	"huddle/pkg/socket"
	"huddle/types/client/request"
	"huddle/types/client/response"
	"huddle/types/message"
)

// Controller processes one signaling socket. It mints the connection ID,
// pumps broker responses back to the socket, and translates client requests
// into broker events for the coordinator.
type Controller struct {
	broker *broker.Broker
	metric *metric.Metrics
}

// New creates a new instance of Controller.
func New(b *broker.Broker, m *metric.Metrics) *Controller {
	return &Controller{
		broker: b,
		metric: m,
	}
}

// Process handles a signaling socket until the client disconnects.
func (c *Controller) Process(conn socket.Socket) error {
	c.metric.IncrementSocketConnections()
	defer c.metric.DecrementSocketConnections()

	// 01. Mint the connection ID and greet the client.
	connectionID := shortuuid.New()
	if err := conn.WriteJSON(response.Welcome{
		Type:         response.WELCOME,
		ConnectionID: connectionID,
	}); err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}

	// 02. Subscribe before any request is handled so that no response
	// published for this connection can be missed.
	detail := broker.Detail(connectionID)
	sub := c.broker.Subscribe(broker.ClientSocket, detail)
	defer func() {
		if err := c.broker.Unsubscribe(broker.ClientSocket, detail, sub); err != nil {
			log.Error().Err(err).Str("connection", connectionID).Msg("failed to unsubscribe")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.sendResponse(ctx, conn, sub)

	// 03. Socket loss means the client is gone, with or without a prior
	// leave request.
	defer func() {
		if err := c.broker.Publish(broker.Client, broker.DEACTIVATE, message.Deactivate{
			ConnectionID: connectionID,
		}); err != nil {
			log.Debug().Err(err).Str("connection", connectionID).Msg("failed to publish deactivate message")
		}
	}()

	if err := c.receiveRequest(conn, connectionID); err != nil {
		return fmt.Errorf("failed to receive request: %w", err)
	}
	return nil
}

// sendResponse pumps broker messages for this connection to the socket.
func (c *Controller) sendResponse(ctx context.Context, conn socket.Socket, sub *subscription.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Receive():
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Msg("failed to send response")
				return
			}
		}
	}
}

// receiveRequest reads requests from the socket and dispatches them until
// the socket errors out.
func (c *Controller) receiveRequest(conn socket.Socket, connectionID string) error {
	for {
		var req request.Common
		if err := conn.ReadJSON(&req); err != nil {
			return fmt.Errorf("failed to parse common message: %w", err)
		}
		if err := c.handleRequest(req, connectionID); err != nil {
			log.Warn().Err(err).Str("connection", connectionID).Msg("failed to handle request")
			continue
		}
	}
}

// handleRequest parses the request type and calls the corresponding handler.
func (c *Controller) handleRequest(req request.Common, connectionID string) error {
	var err error
	switch req.Type {
	case request.JOIN:
		err = c.handleJoin(req, connectionID)
	case request.SIGNAL:
		err = c.handleSignal(req, connectionID)
	case request.LEAVE:
		err = c.handleLeave(connectionID)
	case request.END:
		err = c.handleEnd(connectionID)
	default:
		err = fmt.Errorf("invalid request type: %s", req.Type)
	}
	return err
}

// handleJoin handles a join request. The user identity travels with the
// request; the connection ID was assigned by the server on welcome.
func (c *Controller) handleJoin(req request.Common, connectionID string) error {
	var payload request.Join
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal join payload: %w", err)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("join request without session id")
	}

	payload.User.ConnectionID = connectionID
	if err := c.broker.Publish(broker.Client, broker.JOIN, message.Join{
		SessionID:    payload.SessionID,
		ConnectionID: connectionID,
		User:         payload.User,
	}); err != nil {
		return fmt.Errorf("failed to publish join message: %w", err)
	}
	return nil
}

// handleSignal handles a signal relay request. The payload stays opaque.
func (c *Controller) handleSignal(req request.Common, connectionID string) error {
	var payload request.Signal
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal signal payload: %w", err)
	}
	if payload.To == "" {
		return fmt.Errorf("signal request without target connection")
	}

	if err := c.broker.Publish(broker.Client, broker.SIGNAL, message.Signal{
		From:    connectionID,
		To:      payload.To,
		Payload: payload.Signal,
	}); err != nil {
		return fmt.Errorf("failed to publish signal message: %w", err)
	}
	return nil
}

// handleLeave handles a leave request.
func (c *Controller) handleLeave(connectionID string) error {
	if err := c.broker.Publish(broker.Client, broker.LEAVE, message.Leave{
		ConnectionID: connectionID,
	}); err != nil {
		return fmt.Errorf("failed to publish leave message: %w", err)
	}
	return nil
}

// handleEnd handles an end request. Ownership is checked by the coordinator.
func (c *Controller) handleEnd(connectionID string) error {
	if err := c.broker.Publish(broker.Client, broker.END, message.End{
		ConnectionID: connectionID,
	}); err != nil {
		return fmt.Errorf("failed to publish end message: %w", err)
	}
	return nil
}
