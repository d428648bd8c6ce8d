package types

// Version is the canonical project version.
// The CLI, the sidecar wire protocol and the published notification payloads
// share this version.
const Version = "0.3.0"

// ProtocolVersion is the sidecar wire protocol version carried in hello frames.
const ProtocolVersion = "0.2.0"
