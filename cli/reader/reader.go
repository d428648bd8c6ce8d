package reader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/mirabel/iox"
	"github.com/pithecene-io/mirabel/ipc"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/types"
)

// NewReplayReport builds the report for a finished session.
func NewReplayReport(meta types.SessionMeta, snap types.Snapshot, m metrics.Snapshot) *ReplayReport {
	lines := make([]TranscriptLine, 0, len(snap.Transcript))
	for _, e := range snap.Transcript {
		lines = append(lines, TranscriptLine{
			ID:          e.ID,
			Speaker:     e.SpeakerLabel,
			Text:        e.Text,
			DetailTopic: e.DetailTopic,
			TimestampMs: e.TimestampMs,
			Final:       e.Final,
		})
	}

	return &ReplayReport{
		Session: SessionSummary{
			SessionID:         meta.SessionID,
			Room:              meta.Room,
			Identity:          meta.Identity,
			Mode:              string(snap.Mode),
			AgentState:        string(snap.AgentState),
			Status:            snap.Status,
			PendingTopic:      snap.PendingTopic,
			MicrophoneEnabled: snap.MicrophoneEnabled,
			Entries:           len(lines),
			FramesPlayed:      m.QueueDequeued,
		},
		Transcript: lines,
		Metrics:    m,
	}
}

// SummarizeCapture scans a capture file without driving a session.
func SummarizeCapture(path string) (*CaptureSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer iox.DiscardClose(f)

	summary, err := ScanCapture(f)
	if err != nil {
		return nil, err
	}
	summary.Path = path
	return summary, nil
}

// ScanCapture counts the frames of an inbound capture stream by type.
// Undecodable frames are counted and skipped. A partial trailing frame
// marks the summary truncated; an oversized frame is an error.
func ScanCapture(r io.Reader) (*CaptureSummary, error) {
	summary := &CaptureSummary{ByType: make(map[string]int64)}
	dec := ipc.NewFrameDecoder(r)

	var lastSeq int64
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		var fe *ipc.FrameError
		if errors.As(err, &fe) && fe.Kind == ipc.FrameErrorPartial {
			summary.Truncated = true
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		summary.Frames++

		msg, err := ipc.DecodeMessage(payload)
		if err != nil {
			summary.DecodeErrors++
			continue
		}
		m, ok := msg.(types.Message)
		if !ok {
			summary.DecodeErrors++
			continue
		}
		h := m.MessageHeader()
		summary.ByType[string(h.Type)]++
		if lastSeq != 0 && h.Seq != lastSeq+1 {
			summary.SeqGaps++
		}
		lastSeq = h.Seq
	}
}
