package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUserJoined requests identity assignment (empty Identity) or confirms an existing one.
	CommandUserJoined CommandKind = iota
	// CommandSendMessage persists a chat message and fans it out.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Identity string
	Message  Message
}
