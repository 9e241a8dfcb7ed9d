package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserJoined carries the identity assigned to or confirmed for the connection.
	EventUserJoined EventKind = iota
	// EventMessages delivers a batch of messages: full history on join, one message on fan-out.
	EventMessages
	// EventError notifies the client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Identity string
	Messages []Message
	// History is set for the replay batch. The wire shape is the same either way.
	History bool
	Error   *CoreError
}
