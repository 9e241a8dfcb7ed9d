package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/utils"
)

// HistoryOrder selects the order of the replay batch.
type HistoryOrder string

const (
	// HistoryNewestFirst delivers the most recent message first.
	HistoryNewestFirst HistoryOrder = "newest_first"
	// HistoryOldestFirst delivers history in chronological order.
	HistoryOldestFirst HistoryOrder = "oldest_first"
)

// HubConfig configures the fan-out engine.
type HubConfig struct {
	// ChatID is stamped on every persisted message and scopes history replay.
	ChatID       string
	HistoryOrder HistoryOrder
}

// Hub assigns identities, replays history and fans out messages to live connections.
//
// Every registered client gets its own command pump, so commands of one
// connection run in order while different connections proceed concurrently.
// Two sends racing on storage may reach other clients in either order.
// Fan-out also reaches connections that have not joined yet, so a message
// stored while a connection joins can arrive before its history batch and
// again inside it.
type Hub struct {
	cfg        HubConfig
	registry   *Registry
	identities *IdentityService
	messages   store.MessageStore
	validate   *validator.Validate
	newID      func() string
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	pumps   sync.WaitGroup
}

// NewHub creates a new chat hub instance backed by st.
func NewHub(st store.Store, cfg HubConfig, logger *zerolog.Logger) *Hub {
	if cfg.HistoryOrder == "" {
		cfg.HistoryOrder = HistoryNewestFirst
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "hub").Str("chat_id", cfg.ChatID).Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		cfg:        cfg,
		registry:   NewRegistry(),
		identities: NewIdentityService(st),
		messages:   st,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		newID:      utils.NewID,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run blocks until ctx is cancelled, then stops every command pump.
func (h *Hub) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-h.ctx.Done():
	}

	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
	for _, c := range h.registry.Handles(nil) {
		c.Close()
	}
	h.pumps.Wait()
	h.log.Info().Msg("hub stopped")
}

// RegisterClient marks the connection live and starts processing its commands.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		c.Close()
		return
	}

	h.registry.Connect(c)
	h.pumps.Add(1)
	go h.pump(c)

	h.log.Debug().Str("client_id", c.ID).Int("live", h.registry.Len()).Msg("client connected")
}

// UnregisterClient drops the connection from every future audience.
// Events already queued for it are not retracted.
func (h *Hub) UnregisterClient(c *Client) {
	h.registry.Disconnect(c)
	c.Close()

	h.log.Debug().Str("client_id", c.ID).Int("live", h.registry.Len()).Msg("client disconnected")
}

func (h *Hub) pump(c *Client) {
	defer h.pumps.Done()

	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(c, cmd)
			}
		case <-c.Done():
			return
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandUserJoined:
		if _, err := h.Join(h.ctx, c, cmd.Identity); err != nil {
			h.reject(c, err)
		}
	case CommandSendMessage:
		if _, ok := h.registry.IdentityOf(c); !ok {
			h.log.Debug().Str("client_id", c.ID).Msg("message from connection without identity dropped")
			h.reject(c, ErrNotIdentified)
			return
		}
		if _, err := h.Send(h.ctx, cmd.Message, c, false); err != nil {
			h.reject(c, err)
		}
	default:
		h.reject(c, fmt.Errorf("%w: unknown command %d", ErrInvalidMessage, cmd.Kind))
	}
}

// Join establishes the identity of a connection and replays history to it.
// A connection is identified at most once; later calls return ErrAlreadyJoined.
func (h *Hub) Join(ctx context.Context, c *Client, supplied string) (string, error) {
	if _, ok := h.registry.IdentityOf(c); ok {
		return "", ErrAlreadyJoined
	}

	identity, err := h.identities.EnsureIdentity(ctx, supplied)
	if err != nil {
		h.log.Error().Err(err).Str("client_id", c.ID).Msg("identity assignment failed")
		return "", err
	}

	if !h.registry.Bind(c, identity) {
		h.log.Debug().Str("client_id", c.ID).Msg("client left before identity was bound")
		return identity, nil
	}

	h.log.Info().
		Str("client_id", c.ID).
		Str("user_id", identity).
		Bool("new_identity", supplied == "").
		Msg("user joined")

	if !c.deliver(&Event{Kind: EventUserJoined, Identity: identity}) {
		h.log.Warn().Str("client_id", c.ID).Msg("event queue full, userJoined dropped")
	}

	if err := h.ReplayTo(ctx, c); err != nil {
		h.log.Error().Err(err).Str("client_id", c.ID).Msg("history replay failed")
		h.reject(c, err)
	}
	return identity, nil
}

// ReplayTo delivers the persisted history of the chat as a single batch.
// Nothing is sent when there is no history.
func (h *Hub) ReplayTo(ctx context.Context, c *Client) error {
	records, err := h.messages.ListMessages(ctx, h.cfg.ChatID)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	msgs := lo.Map(records, func(r *store.Message, _ int) Message {
		return messageFromRecord(r)
	})
	if h.cfg.HistoryOrder != HistoryOldestFirst {
		slices.Reverse(msgs)
	}

	if !c.deliver(&Event{Kind: EventMessages, Messages: msgs, History: true}) {
		h.log.Warn().Str("client_id", c.ID).Int("messages", len(msgs)).Msg("event queue full, history dropped")
	}
	return nil
}

// Send validates, persists and distributes one message.
//
// Client messages go to every live connection except origin. Server-origin
// messages go to every live connection. Nothing is distributed unless the
// store reports exactly one inserted row.
func (h *Hub) Send(ctx context.Context, msg Message, origin *Client, serverOrigin bool) (*Message, error) {
	logger := h.log.With().Bool("server_origin", serverOrigin).Logger()
	if origin != nil {
		logger = logger.With().Str("client_id", origin.ID).Logger()
	}

	if err := h.validate.Struct(msg); err != nil {
		logger.Warn().Err(err).Msg("invalid message dropped")
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msg.ID = h.newID()
	msg.ChatID = h.cfg.ChatID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if !store.ValidCreatedAt(msg.CreatedAt) {
		logger.Warn().Time("created_at", msg.CreatedAt).Msg("message with unrepresentable createdAt dropped")
		return nil, fmt.Errorf("%w: createdAt %s: %w", ErrInvalidMessage, msg.CreatedAt.Format(time.RFC3339), store.ErrTimeOutOfRange)
	}

	n, err := h.messages.InsertMessage(ctx, msg.toRecord())
	if err != nil {
		logger.Error().Err(err).Str("message_id", msg.ID).Msg("message insert failed")
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if n != 1 {
		logger.Error().Int64("inserted", n).Str("message_id", msg.ID).Msg("message was not inserted")
		return nil, fmt.Errorf("insert message: %d rows: %w", n, store.ErrNotInserted)
	}

	audience := h.registry.Handles(origin)
	if serverOrigin {
		audience = h.registry.Handles(nil)
	}
	h.broadcast(audience, &Event{Kind: EventMessages, Messages: []Message{msg}})

	logger.Debug().Str("message_id", msg.ID).Int("recipients", len(audience)).Msg("message sent")
	return &msg, nil
}

func (h *Hub) broadcast(audience []*Client, ev *Event) {
	for _, c := range audience {
		if !c.deliver(ev) {
			// Drop if slow consumer.
			h.log.Warn().Str("client_id", c.ID).Msg("event queue full, message dropped")
		}
	}
}

func (h *Hub) reject(c *Client, err error) {
	c.deliver(&Event{Kind: EventError, Error: toCoreError(err)})
}
