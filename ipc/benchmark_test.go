package ipc

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/mirabel/types"
)

// probeTypeFull decodes the whole header, for comparison with probeType.
func probeTypeFull(payload []byte) (string, error) {
	var h types.Header
	if err := msgpack.Unmarshal(payload, &h); err != nil {
		return "", err
	}
	return string(h.Type), nil
}

func dataPayload(b *testing.B) []byte {
	b.Helper()
	payload, err := msgpack.Marshal(&types.DataMessage{
		Header:      types.Header{Type: types.MsgData, Seq: 1},
		Participant: "agent-1",
		Payload:     bytes.Repeat([]byte{0x3f}, 208),
	})
	if err != nil {
		b.Fatal(err)
	}
	return payload
}

func BenchmarkProbeType(b *testing.B) {
	payload := dataPayload(b)

	b.Run("streaming", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			if _, err := probeType(payload); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("full", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			if _, err := probeTypeFull(payload); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkReadAndDecode_DataStream(b *testing.B) {
	payload := dataPayload(b)
	var stream bytes.Buffer
	for range 60 {
		stream.Write(encodeRaw(payload))
	}
	raw := stream.Bytes()

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		dec := NewFrameDecoder(bytes.NewReader(raw))
		for {
			p, err := dec.ReadFrame()
			if err != nil {
				break
			}
			if _, err := DecodeMessage(p); err != nil {
				b.Fatal(err)
			}
		}
	}
}
