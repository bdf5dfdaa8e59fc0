package aggregator

import (
	"encoding/gob"
	"io"
	"sync"
)

// FileRecorder persists every event it observes to an underlying
// writer as a stream of gob-encoded envelopes, for later offline
// replay. It is a minimal, in-module stand-in for the dedicated event
// recorder process; a production deployment can swap in any Recorder
// that writes to durable storage instead.
type FileRecorder struct {
	mu  sync.Mutex
	enc *gob.Encoder
}

type recordedEvent struct {
	Kind  string
	Event Event
}

func init() {
	gob.Register(EventMetadata{})
	gob.Register(EventSpawn{})
	gob.Register(EventEnter{})
	gob.Register(EventExit{})
	gob.Register(EventClose{})
	gob.Register(EventWaker{})
}

// NewFileRecorder wraps w as a Recorder. The caller owns w's lifetime
// (opening and closing it).
func NewFileRecorder(w io.Writer) *FileRecorder {
	return &FileRecorder{enc: gob.NewEncoder(w)}
}

// Record implements Recorder. Encoding errors are swallowed: a
// recording failure must never stall or crash live aggregation.
func (r *FileRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(recordedEvent{Kind: eventKind(ev), Event: ev})
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case EventMetadata:
		return "metadata"
	case EventSpawn:
		return "spawn"
	case EventEnter:
		return "enter"
	case EventExit:
		return "exit"
	case EventClose:
		return "close"
	case EventWaker:
		return "waker"
	default:
		return "unknown"
	}
}
