package types

// MessageType is the discriminant carried by every sidecar pipe message.
type MessageType string

// Inbound message types (sidecar to core).
const (
	MsgHello        MessageType = "hello"
	MsgParticipants MessageType = "participants"
	MsgChat         MessageType = "chat"
	MsgStreamOpen   MessageType = "stream_open"
	MsgStreamChunk  MessageType = "stream_chunk"
	MsgStreamClose  MessageType = "stream_close"
	MsgRPCRequest   MessageType = "rpc_request"
	MsgRPCResult    MessageType = "rpc_result"
	MsgData         MessageType = "data"
	MsgAction       MessageType = "action"
)

// Outbound message types (core to sidecar).
const (
	MsgRPCCall     MessageType = "rpc_call"
	MsgRPCResponse MessageType = "rpc_response"
	MsgChatSend    MessageType = "chat_send"
	MsgMicrophone  MessageType = "microphone"
	MsgPlayback    MessageType = "playback"
	MsgState       MessageType = "state"
)

// IsInbound returns true if the type may appear on the inbound pipe.
func (t MessageType) IsInbound() bool {
	switch t {
	case MsgHello, MsgParticipants, MsgChat, MsgStreamOpen, MsgStreamChunk,
		MsgStreamClose, MsgRPCRequest, MsgRPCResult, MsgData, MsgAction:
		return true
	}
	return false
}

// Header is the common prefix of every pipe message.
// Seq is monotonic per direction and starts at 1.
type Header struct {
	Type MessageType `msgpack:"type"`
	Seq  int64       `msgpack:"seq"`
}

// MessageHeader returns the common header.
func (h Header) MessageHeader() Header { return h }

// Message is implemented by every pipe message through its embedded Header.
type Message interface {
	MessageHeader() Header
}

// HelloMessage announces the local participant once the room is joined.
type HelloMessage struct {
	Header          `msgpack:",inline"`
	Identity        string `msgpack:"identity"`
	Room            string `msgpack:"room"`
	ProtocolVersion string `msgpack:"protocol_version"`
}

// ParticipantsMessage replaces the known remote participant set.
type ParticipantsMessage struct {
	Header     `msgpack:",inline"`
	Identities []string `msgpack:"identities"`
}

// ChatMessage is a discrete chat message observed on the shared chat channel.
// ID may be empty; locally sent messages are echoed back by the sidecar.
type ChatMessage struct {
	Header      `msgpack:",inline"`
	ID          string `msgpack:"id,omitempty"`
	From        string `msgpack:"from"`
	Message     string `msgpack:"message"`
	TimestampMs int64  `msgpack:"timestamp_ms"`
}

// StreamOpenMessage opens an incremental text stream.
type StreamOpenMessage struct {
	Header      `msgpack:",inline"`
	StreamID    string            `msgpack:"stream_id"`
	Topic       string            `msgpack:"topic"`
	Participant string            `msgpack:"participant"`
	Attributes  map[string]string `msgpack:"attributes,omitempty"`
	TimestampMs int64             `msgpack:"timestamp_ms"`
}

// StreamChunkMessage carries one UTF-8 text chunk of an open stream.
type StreamChunkMessage struct {
	Header   `msgpack:",inline"`
	StreamID string `msgpack:"stream_id"`
	Text     string `msgpack:"text"`
}

// StreamCloseMessage ends a stream. A non-empty Error marks a failed read.
type StreamCloseMessage struct {
	Header   `msgpack:",inline"`
	StreamID string `msgpack:"stream_id"`
	Error    string `msgpack:"error,omitempty"`
}

// RPCRequestMessage is an RPC invoked on the local participant by a remote one.
type RPCRequestMessage struct {
	Header    `msgpack:",inline"`
	RequestID string `msgpack:"request_id"`
	Method    string `msgpack:"method"`
	Caller    string `msgpack:"caller"`
	Payload   string `msgpack:"payload"`
}

// RPCResultMessage answers an outbound RPCCallMessage with the same RequestID.
type RPCResultMessage struct {
	Header    `msgpack:",inline"`
	RequestID string `msgpack:"request_id"`
	Payload   string `msgpack:"payload"`
	Error     string `msgpack:"error,omitempty"`
}

// DataMessage is a binary payload received on the data channel.
type DataMessage struct {
	Header      `msgpack:",inline"`
	Participant string `msgpack:"participant"`
	Payload     []byte `msgpack:"payload"`
}

// UserAction names an action taken by the kiosk user.
type UserAction string

// User actions.
const (
	ActionSendChat        UserAction = "send_chat"
	ActionEnterAvatar     UserAction = "enter_avatar"
	ActionEnterChat       UserAction = "enter_chat"
	ActionClearAnnotation UserAction = "clear_annotation"
	ActionSetMicrophone   UserAction = "set_microphone"
)

// ActionMessage carries a user action from the kiosk UI.
type ActionMessage struct {
	Header    `msgpack:",inline"`
	Action    UserAction `msgpack:"action"`
	Text      string     `msgpack:"text,omitempty"`
	Interrupt bool       `msgpack:"interrupt,omitempty"`
	EntryID   string     `msgpack:"entry_id,omitempty"`
	Enabled   bool       `msgpack:"enabled,omitempty"`
}

// RPCCallMessage invokes an RPC method on a remote participant.
type RPCCallMessage struct {
	Header      `msgpack:",inline"`
	RequestID   string `msgpack:"request_id"`
	Destination string `msgpack:"destination"`
	Method      string `msgpack:"method"`
	Payload     string `msgpack:"payload"`
}

// RPCResponseMessage answers an inbound RPCRequestMessage.
type RPCResponseMessage struct {
	Header    `msgpack:",inline"`
	RequestID string `msgpack:"request_id"`
	Payload   string `msgpack:"payload"`
	Error     string `msgpack:"error,omitempty"`
}

// ChatSendMessage sends plain text to the shared chat channel.
type ChatSendMessage struct {
	Header `msgpack:",inline"`
	Text   string `msgpack:"text"`
}

// MicrophoneMessage enables or disables the local microphone track.
type MicrophoneMessage struct {
	Header  `msgpack:",inline"`
	Enabled bool `msgpack:"enabled"`
}

// PlaybackMessage delivers one playback sink call.
// Priority is set for out-of-band signals that bypass the frame queue.
type PlaybackMessage struct {
	Header   `msgpack:",inline"`
	Payload  string `msgpack:"payload"`
	Priority bool   `msgpack:"priority,omitempty"`
}

// StateMessage publishes a session snapshot.
type StateMessage struct {
	Header   `msgpack:",inline"`
	Snapshot Snapshot `msgpack:"snapshot"`
}
