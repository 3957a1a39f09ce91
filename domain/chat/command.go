package chat

// Command is an intent submitted by a connection and processed by the hub's
// event loop. Commands carry no identity: the session they arrived on does.
type Command interface {
	isCommand()
}

type AuthenticateCommand struct {
	Token string
}

type JoinRoomCommand struct {
	Room RoomID
}

type LeaveRoomCommand struct {
	Room RoomID
}

type SendMessageCommand struct {
	Room    RoomID
	Content string
	Kind    MessageKind
}

type MarkRoomReadCommand struct {
	Room RoomID
}

type MarkMessageReadCommand struct {
	Room    RoomID
	Message MessageID
}

// DisconnectCommand is synthesized by the transport when a connection drops.
type DisconnectCommand struct{}

func (AuthenticateCommand) isCommand()    {}
func (JoinRoomCommand) isCommand()        {}
func (LeaveRoomCommand) isCommand()       {}
func (SendMessageCommand) isCommand()     {}
func (MarkRoomReadCommand) isCommand()    {}
func (MarkMessageReadCommand) isCommand() {}
func (DisconnectCommand) isCommand()      {}
