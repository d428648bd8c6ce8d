package transcript

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/pithecene-io/mirabel/log"
	"github.com/pithecene-io/mirabel/metrics"
	"github.com/pithecene-io/mirabel/types"
)

// TopicTranscription is the text stream topic carrying transcriptions.
const TopicTranscription = "lk.transcription"

// Stream header attributes.
const (
	AttrTranscribedTrack    = "lk.transcribed_track_id"
	AttrTranscriptionFinal  = "lk.transcription_final"
	AttrSegmentID           = "lk.segment_id"
	attrNamespace           = "lk."
	transcriptionFinalValue = "true"
)

// PendingSentinel is appended to streamed text until the stream completes.
const PendingSentinel = " ..."

// logEvery throttles per-chunk debug logging.
const logEvery = 30

// Update is one republish of a streamed entry.
type Update struct {
	EntryID     string
	StreamID    string
	Text        string // accumulated chunks, without sentinel
	IsUser      bool
	TimestampMs int64
	// FinalMarker is set when the stream header declared the final transcription.
	FinalMarker bool
	// Ended is set on the single republish emitted after the stream closes.
	Ended bool
}

// Display returns the text to render for this update.
func (u Update) Display() string {
	if u.FinalMarker || u.Ended {
		return u.Text
	}
	return u.Text + PendingSentinel
}

// ApplyResult describes what ApplyUpdate did.
type ApplyResult struct {
	Entry types.TranscriptEntry
	// Changed is false when the update was ignored.
	Changed bool
	// Created is true when the update inserted a new entry.
	Created bool
	// Attached is true when a pending annotation was consumed.
	Attached bool
}

// ApplyUpdate merges a streamed update into the log.
//
// The first update for a non-user entry consumes a pending annotation; later
// updates preserve whatever DetailTopic the entry already has. A final entry
// is immutable to the stream that finished it, but a new stream for the same
// segment replaces its text. An end-of-stream update for an entry that was
// never created is ignored.
func ApplyUpdate(l Log, a Annotation, u Update) (Log, Annotation, ApplyResult) {
	existing, ok := l.Get(u.EntryID)
	if !ok {
		if u.Ended {
			return l, a, ApplyResult{}
		}
		e := types.TranscriptEntry{
			ID:           u.EntryID,
			Text:         u.Display(),
			IsUser:       u.IsUser,
			TimestampMs:  u.TimestampMs,
			SpeakerLabel: types.SpeakerFor(u.IsUser),
			StreamID:     u.StreamID,
		}
		e, next, attached := attach(e, a)
		return l.Upsert(e), next, ApplyResult{Entry: e, Changed: true, Created: true, Attached: attached}
	}
	if existing.Final && existing.StreamID == u.StreamID {
		return l, a, ApplyResult{Entry: existing}
	}

	e := existing
	e.StreamID = u.StreamID
	e.Text = u.Display()
	e.Final = u.Ended
	return l.Upsert(e), a, ApplyResult{Entry: e, Changed: true}
}

// IsTranscription reports whether a stream header carries the transcription marker.
func IsTranscription(info types.StreamInfo) bool {
	return attribute(info.Attributes, AttrTranscribedTrack) != ""
}

// EntryID resolves the transcript id for a stream: segment id, else stream id.
func EntryID(info types.StreamInfo) string {
	if seg := attribute(info.Attributes, AttrSegmentID); seg != "" {
		return seg
	}
	return info.ID
}

// attribute reads key, accepting the bare name without the lk. namespace.
func attribute(attrs map[string]string, key string) string {
	if v, ok := attrs[key]; ok {
		return v
	}
	return attrs[strings.TrimPrefix(key, attrNamespace)]
}

// Reconciler turns transcription streams into Updates.
// HandleStream is safe to call concurrently, one goroutine per stream.
type Reconciler struct {
	identity string
	post     func(Update)
	now      func() int64
	logger   *log.Logger
	metrics  *metrics.Collector
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// LocalIdentity marks streams authored by the local participant.
	LocalIdentity string
	// Post receives updates in chunk-arrival order for a given stream.
	Post func(Update)
	// Now supplies the timestamp for headers that carry none.
	Now     func() int64
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		identity: cfg.LocalIdentity,
		post:     cfg.Post,
		now:      cfg.Now,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// HandleStream reads one stream to completion, posting an Update per chunk
// and a final Update with the sentinel removed once the stream ends.
// A read error is logged; the entry keeps its last text.
func (r *Reconciler) HandleStream(ctx context.Context, info types.StreamInfo, chunks types.ChunkReader) {
	if !IsTranscription(info) {
		r.logger.Debug("ignoring non-transcription stream", map[string]any{
			"stream_id": info.ID,
			"topic":     info.Topic,
		})
		return
	}
	r.metrics.IncTranscriptionStreams()

	ts := info.TimestampMs
	if ts == 0 && r.now != nil {
		ts = r.now()
	}
	base := Update{
		EntryID:     EntryID(info),
		StreamID:    info.ID,
		IsUser:      info.Participant == r.identity,
		TimestampMs: ts,
		FinalMarker: attribute(info.Attributes, AttrTranscriptionFinal) == transcriptionFinalValue,
	}
	if base.FinalMarker {
		r.logger.Debug("final transcription", map[string]any{
			"entry_id":    base.EntryID,
			"participant": info.Participant,
			"is_user":     base.IsUser,
		})
	}

	var buf strings.Builder
	for n := 1; ; n++ {
		chunk, err := chunks.Next(ctx)
		if errors.Is(err, io.EOF) {
			u := base
			u.Text = buf.String()
			u.Ended = true
			r.post(u)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.metrics.IncStreamErrors()
			r.logger.Error("transcription stream failed", map[string]any{
				"stream_id": info.ID,
				"entry_id":  base.EntryID,
				"error":     err.Error(),
			})
			return
		}

		buf.WriteString(chunk)
		u := base
		u.Text = buf.String()
		r.post(u)

		if n%logEvery == 0 {
			r.logger.Debug("transcription chunks", map[string]any{
				"entry_id": base.EntryID,
				"chunks":   n,
			})
		}
	}
}
