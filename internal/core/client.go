package core

import "sync"

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Client is one live realtime connection as seen by the core layer.
// Its identity lives in the Registry, not on the handle.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	quit      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
		quit:     make(chan struct{}),
	}
}

// Close stops command processing for the client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.quit
}

// deliver queues an event without blocking. Returns false if the queue is full.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
