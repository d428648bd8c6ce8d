package transcript

import "github.com/pithecene-io/mirabel/types"

// Annotation holds at most one pending detail topic waiting for the next
// agent-authored entry. The zero value is empty.
type Annotation struct {
	topic string
}

// Pending returns an annotation holding topic. An empty topic yields Empty.
func Pending(topic string) Annotation {
	return Annotation{topic: topic}
}

// IsPending reports whether a topic is waiting.
func (a Annotation) IsPending() bool {
	return a.topic != ""
}

// Topic returns the pending topic, or "" when empty.
func (a Annotation) Topic() string {
	return a.topic
}

// Replace returns the annotation holding topic and the topic it displaced,
// if any. Last write wins.
func (a Annotation) Replace(topic string) (next Annotation, displaced string) {
	if a.topic != "" && a.topic != topic {
		displaced = a.topic
	}
	return Annotation{topic: topic}, displaced
}

// Take consumes the pending topic, returning it and the empty annotation.
func (a Annotation) Take() (string, Annotation) {
	return a.topic, Annotation{}
}

// ClearAnnotation handles the user's explicit clear for entry id: the pending
// topic is dropped and DetailTopic is stripped from that entry only.
func ClearAnnotation(l Log, id string) (Log, Annotation) {
	next, _ := l.ClearDetail(id)
	return next, Annotation{}
}

// attach sets DetailTopic on a newly created agent entry from a pending annotation.
func attach(e types.TranscriptEntry, a Annotation) (types.TranscriptEntry, Annotation, bool) {
	if e.IsUser || !a.IsPending() {
		return e, a, false
	}
	topic, rest := a.Take()
	e.DetailTopic = topic
	return e, rest, true
}
