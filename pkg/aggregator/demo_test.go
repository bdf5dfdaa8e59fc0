package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDemoSourceEmitsMetadataBeforeStop(t *testing.T) {
	events := make(chan Event, 256)
	d := NewDemoSource(events, nil)
	d.Start()

	var sawMetadata bool
	deadline := time.After(time.Second)
loop:
	for {
		select {
		case ev := <-events:
			if _, ok := ev.(EventMetadata); ok {
				sawMetadata = true
				break loop
			}
		case <-deadline:
			break loop
		}
	}
	d.Stop()

	assert.True(t, sawMetadata, "demo source should emit its metadata descriptor")
}
