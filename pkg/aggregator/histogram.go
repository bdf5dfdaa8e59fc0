package aggregator

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// pollHistogramLowest/Highest bound the poll-time histogram at 1ns and
// one day: polls shorter than a nanosecond don't occur, and anything
// clamped to a day is already pathological.
const (
	pollHistogramLowest     = int64(1)
	pollHistogramHighest    = int64(24 * time.Hour)
	pollHistogramSigFigures = 2
)

func newPollHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(pollHistogramLowest, pollHistogramHighest, pollHistogramSigFigures)
}

// recordPoll records d into h, saturating to the histogram's
// trackable range rather than dropping the sample. A negative d (a
// non-monotonic clock) is recorded as the minimum trackable value.
func recordPoll(h *hdrhistogram.Histogram, d time.Duration) {
	ns := d.Nanoseconds()
	if ns < pollHistogramLowest {
		ns = pollHistogramLowest
	}
	if ns > pollHistogramHighest {
		ns = pollHistogramHighest
	}
	// RecordValue only errors when the value is out of range, which
	// cannot happen after the clamp above.
	_ = h.RecordValue(ns)
}

// serializeHistogram encodes h's distribution for the detail stream.
// This is a gob encoding of the histogram's bucket counts, not the
// wire format original_source's client decodes — that decoder is an
// external collaborator outside this module's scope — but it carries
// the same information (lowest/highest/significant-figures plus
// counts) and round-trips with Import.
func serializeHistogram(h *hdrhistogram.Histogram) []byte {
	snap := h.Export()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		// A Snapshot of in-memory counts cannot fail to gob-encode.
		panic(err)
	}
	return buf.Bytes()
}
