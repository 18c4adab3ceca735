// Package events bridges in-process scan progress onto Kafka.
package events

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/progress"
)

// Emitter subscribes to the progress bus and republishes every event to the
// dupescan topic, so the review UI can follow a scan without polling.
type Emitter struct {
	producer *kafka.Producer
	bus      *progress.Bus
	logger   ectologger.Logger

	wg     sync.WaitGroup
	cancel func()
}

// NewEmitter creates a new progress emitter
func NewEmitter(producer *kafka.Producer, bus *progress.Bus, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		bus:      bus,
		logger:   logger,
	}
}

// Start begins forwarding progress events until Stop is called.
func (e *Emitter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe := e.bus.Subscribe(64)
	e.cancel = func() {
		cancel()
		unsubscribe()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				// Progress is advisory: a failed publish is logged by the
				// producer and the scan keeps going.
				_ = e.producer.PublishProgressEvent(ctx, &event)
			}
		}
	}()

	e.logger.WithContext(ctx).Info("Progress emitter started")
}

// Stop stops forwarding and waits for the worker to drain.
func (e *Emitter) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}
