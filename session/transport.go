package session

import (
	"context"

	"github.com/pithecene-io/mirabel/types"
)

// Release undoes one registration.
type Release func()

// StreamHandler reads one text stream. It runs on its own goroutine.
type StreamHandler func(ctx context.Context, info types.StreamInfo, chunks types.ChunkReader)

// RPCHandler answers an inbound RPC with a response payload.
type RPCHandler func(ctx context.Context, call types.RPCInvocation) (string, error)

// ChatHandler receives discrete chat messages.
type ChatHandler func(types.ChatEvent)

// DataHandler receives data-channel payloads.
type DataHandler func(participant string, payload []byte)

// Transport is the real-time session collaborator.
// Every Register/On method returns a Release that undoes it.
type Transport interface {
	LocalIdentity() string
	RemoteParticipants() []string

	RegisterTextStreamHandler(topic string, h StreamHandler) (Release, error)
	RegisterRPCMethod(method string, h RPCHandler) (Release, error)
	OnChatMessage(h ChatHandler) (Release, error)
	OnDataReceived(h DataHandler) (Release, error)

	PerformRPC(ctx context.Context, destination, method, payload string) (string, error)
	SendChat(ctx context.Context, text string) error
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
}

// StatePublisher is implemented by transports that forward snapshots.
type StatePublisher interface {
	PublishState(ctx context.Context, snap types.Snapshot) error
}

// Notifier receives finalized transcript entries. Notify must not block.
type Notifier interface {
	Notify(entry types.TranscriptEntry)
}
