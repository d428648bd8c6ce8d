// Package frame adapts the agent's bursty animation stream to a fixed
// playback cadence: classification, downsampling, a bounded FIFO queue and a
// fixed-tick scheduler feeding a playback Sink.
package frame

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pithecene-io/mirabel/types"
)

// Animation frame layout.
const (
	FloatsPerFrame = 52
	FrameSize      = FloatsPerFrame * 4
)

// InterruptMarker is the control text that stops playback immediately.
const InterruptMarker = "interrupted"

// Kind distinguishes animation frames from control text.
type Kind int

const (
	// KindFrame is a 208-byte animation frame.
	KindFrame Kind = iota
	// KindControl is a UTF-8 control string.
	KindControl
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindFrame {
		return "frame"
	}
	return "control"
}

// Payload is one item carried through the queue.
type Payload struct {
	Kind Kind
	// Seq is the arrival sequence number (1-based, all agent payloads).
	Seq int64
	// Values holds the decoded floats for KindFrame.
	Values [FloatsPerFrame]float32
	// Text holds the control string for KindControl.
	Text string
}

// IsInterrupt reports whether p is the interrupt control signal.
func (p Payload) IsInterrupt() bool {
	return p.Kind == KindControl && p.Text == InterruptMarker
}

// PlaybackString renders p for the playback sink: comma-separated values for
// a frame, the literal text for a control payload.
func (p Payload) PlaybackString() string {
	if p.Kind == KindControl {
		return p.Text
	}
	var b strings.Builder
	b.Grow(FloatsPerFrame * 12)
	for i, v := range p.Values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return b.String()
}

// Discard reasons returned by Classify.
const (
	ReasonNotAgent = "not_agent"
	ReasonEmpty    = "empty"
	ReasonNotUTF8  = "invalid_utf8"
)

// Classify decodes a data-channel payload. Payloads from senders without the
// agent prefix, empty payloads and undecodable control text are discarded
// with a reason.
func Classify(sender, agentPrefix string, data []byte) (Payload, string) {
	if !types.IsAgentIdentity(sender, agentPrefix) {
		return Payload{}, ReasonNotAgent
	}
	if len(data) == 0 {
		return Payload{}, ReasonEmpty
	}
	if len(data) == FrameSize {
		p := Payload{Kind: KindFrame}
		for i := range p.Values {
			p.Values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return p, ""
	}
	if !utf8.Valid(data) {
		return Payload{}, ReasonNotUTF8
	}
	return Payload{Kind: KindControl, Text: string(data)}, ""
}

// EncodeFrame packs values into the 208-byte little-endian wire layout.
func EncodeFrame(values [FloatsPerFrame]float32) []byte {
	out := make([]byte, FrameSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
