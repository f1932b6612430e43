package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/google/uuid"
)

// ErrDisconnected is the cause every queued and outstanding action's
// promise is failed with when a Client's connection drops, is evicted, or
// the session otherwise ends (spec §4.3).
type ErrDisconnected struct {
	Login  string
	Reason string
}

func (e *ErrDisconnected) Error() string {
	return fmt.Sprintf("transport: %s disconnected: %s", e.Login, e.Reason)
}

var errUnexpectedResponse = errors.New("transport: response received with no matching outstanding action")

type queuedAction struct {
	act action.Action
	p   *future.Promise[codec.Value]
}

// Client is one logged-in agent's session: its connection, outbound send
// queue (of whole action groups), and the in-flight response queue
// matched FIFO against incoming values (spec §4.3).
type Client struct {
	Login string
	ID    uuid.UUID

	conn  net.Conn
	loop  *future.Loop
	alive *int32
	logf  func(string, ...any)

	sendQueue      [][]queuedAction
	responseQueue  []queuedAction
	sending        bool
	pendingInGroup int
	dead           bool
	onClose        func(*Client)
}

func newClient(conn net.Conn, login string, loop *future.Loop, alive *int32, logf func(string, ...any)) *Client {
	return &Client{
		Login: login,
		ID:    uuid.New(),
		conn:  conn,
		loop:  loop,
		alive: alive,
		logf:  logf,
	}
}

// Enqueue appends one action group to the send queue and returns one
// promise per action, resolved in order as responses arrive. Must be
// called from the owning Factory's event-loop goroutine, matching the
// single-threaded cooperative model (spec §5).
func (c *Client) Enqueue(group []action.Action) []*future.Promise[codec.Value] {
	ps := make([]*future.Promise[codec.Value], len(group))
	qs := make([]queuedAction, len(group))
	for i, a := range group {
		p := future.New[codec.Value](c.loop, c.alive)
		if c.dead {
			p.Fail(&ErrDisconnected{Login: c.Login, Reason: "already disconnected"})
		}
		ps[i] = p
		qs[i] = queuedAction{act: a, p: p}
	}
	if c.dead {
		return ps
	}
	c.sendQueue = append(c.sendQueue, qs)
	c.pump()
	return ps
}

// pump sends the next queued group, if any, and no group is already in
// flight (spec §4.3: "send is serialised per client — only one group is
// in flight at a time").
func (c *Client) pump() {
	if c.sending || len(c.sendQueue) == 0 || c.dead {
		return
	}
	group := c.sendQueue[0]
	c.sendQueue = c.sendQueue[1:]

	acts := make([]action.Action, len(group))
	for i, q := range group {
		acts[i] = q.act
	}
	encoded, err := codec.Encode(action.EncodeGroup(acts))
	if err != nil {
		c.failGroup(group, err)
		return
	}
	if _, err := c.conn.Write(encoded); err != nil {
		c.responseQueue = append(c.responseQueue, group...)
		c.disconnect(err.Error())
		return
	}
	c.sending = true
	c.pendingInGroup = len(group)
	c.responseQueue = append(c.responseQueue, group...)
}

func (c *Client) failGroup(group []queuedAction, err error) {
	for _, q := range group {
		q.p.Fail(err)
	}
}

// onResponse matches one decoded value FIFO against the response queue
// (spec §4.3). An unexpected value (queue empty) is a protocol error that
// disconnects the client.
func (c *Client) onResponse(v codec.Value) error {
	if len(c.responseQueue) == 0 {
		c.disconnect(errUnexpectedResponse.Error())
		return errUnexpectedResponse
	}
	q := c.responseQueue[0]
	c.responseQueue = c.responseQueue[1:]
	q.p.Resolve(v)
	c.pendingInGroup--
	if c.pendingInGroup <= 0 {
		c.sending = false
		c.pump()
	}
	return nil
}

// disconnect tears the session down: every queued and outstanding action
// fails with ErrDisconnected, and the underlying connection is closed.
func (c *Client) disconnect(reason string) {
	if c.dead {
		return
	}
	c.dead = true
	cause := &ErrDisconnected{Login: c.Login, Reason: reason}
	for _, group := range c.sendQueue {
		c.failGroup(group, cause)
	}
	c.sendQueue = nil
	for _, q := range c.responseQueue {
		q.p.Fail(cause)
	}
	c.responseQueue = nil
	c.conn.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
	if c.logf != nil {
		c.logf("transport: %s disconnected: %s", c.Login, reason)
	}
}
