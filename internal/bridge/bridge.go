// Package bridge maintains the WebSocket link to the host module. It
// feeds inbound host messages to the dispatcher and exposes the
// extension's outbound surface: move commands awaiting a result, plus
// fire-and-forget warnings and status reports.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marchline/extension/pkg/core"
	"github.com/marchline/extension/pkg/streaming"
)

// moveResultWait bounds how long a move command waits for the host's
// verdict when the caller's context carries no deadline.
const moveResultWait = 5 * time.Second

// Bridge is the extension's client to the host WebSocket server.
type Bridge struct {
	conn *connection

	mu      sync.Mutex
	pending map[string]chan streaming.MoveResultPayload

	onMessage func(env streaming.Envelope)
	logger    *slog.Logger
}

// New creates a Bridge. Inbound envelopes other than move results and
// acks are passed to onMessage, typically a dispatcher submission.
func New(logger *slog.Logger, onMessage func(env streaming.Envelope)) *Bridge {
	b := &Bridge{
		pending:   make(map[string]chan streaming.MoveResultPayload),
		onMessage: onMessage,
		logger:    logger,
	}
	b.conn = newConnection(logger, b.route)
	return b
}

// Dial connects to the host at wsURL, authenticating with secret.
func (b *Bridge) Dial(wsURL, secret string) error {
	return b.conn.dial(wsURL, secret)
}

// Close shuts down the WebSocket connection.
func (b *Bridge) Close() error {
	return b.conn.close()
}

// route claims move results for in-flight move commands and forwards
// everything else to the message callback.
func (b *Bridge) route(env streaming.Envelope) {
	if env.Type == streaming.TypeMoveResult {
		var result streaming.MoveResultPayload
		if err := json.Unmarshal(env.Payload, &result); err != nil {
			b.logger.Debug("Undecodable move result", "error", err)
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[result.ID]
		if ok {
			delete(b.pending, result.ID)
		}
		b.mu.Unlock()

		if ok {
			ch <- result
			return
		}
		b.logger.Debug("Move result with no pending command", "id", result.ID)
		return
	}

	if b.onMessage != nil {
		b.onMessage(env)
	}
}

// Move sends a move command to the host and waits for the matching
// move result. It satisfies the playback engine's move sink.
func (b *Bridge) Move(ctx context.Context, cmd core.MoveCommand) error {
	id := string(cmd.ParticipantID)

	resultCh := make(chan streaming.MoveResultPayload, 1)
	b.mu.Lock()
	if _, exists := b.pending[id]; exists {
		b.mu.Unlock()
		return fmt.Errorf("move already in flight for participant %s", id)
	}
	b.pending[id] = resultCh
	b.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeMoveCommand, streaming.ToMoveCommandPayload(cmd))
	if err != nil {
		b.clearPending(id)
		return err
	}
	b.conn.send(data)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, moveResultWait)
		defer cancel()
	}

	select {
	case result := <-resultCh:
		if !result.OK {
			return fmt.Errorf("host refused move of %s: %s", id, result.Reason)
		}
		return nil
	case <-ctx.Done():
		b.clearPending(id)
		return fmt.Errorf("no move result for participant %s: %w", id, ctx.Err())
	}
}

func (b *Bridge) clearPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// SendWarning pushes a warning to the host. Fire and forget.
func (b *Bridge) SendWarning(p streaming.WarningPayload) error {
	data, err := marshalEnvelope(streaming.TypeWarning, p)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// SendStatus pushes the current marching status to the host. The
// message is cached so a reconnect can replay the latest state.
func (b *Bridge) SendStatus(p streaming.StatusPayload) error {
	data, err := marshalEnvelope(streaming.TypeStatus, p)
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedStatusMsg = data
	b.conn.mu.Unlock()

	b.conn.send(data)
	return nil
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
