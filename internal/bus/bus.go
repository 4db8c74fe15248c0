// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bus implements the minimal typed publish/subscribe fabric
// the pipeline components run on. The generic bus implementation is
// explicitly out of scope per the specification; this is the smallest
// thing that gives every component in this repo somewhere to publish
// and subscribe, with the ordering guarantees spec §5 requires:
// messages on one topic are delivered to a given subscriber in publish
// order, but order across topics is not guaranteed.
package bus

import (
	"context"
	"sync"
)

// Message is the envelope type published on every topic.
type Message any

// Handler processes one message delivered on a subscription. A
// returned error is sent to the bus's error channel and, for the hot
// path, terminates replay (spec §7 "invariant violations").
type Handler func(ctx context.Context, msg Message) error

// Bus is a topic-keyed fan-out with one ordered, buffered queue per
// subscriber. Publishing to a topic with no subscribers is a no-op.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	errCh       chan error
	workers     int
}

type subscription struct {
	topic   string
	handler Handler
	queue   chan Message
	done    chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithWorkers sets the number of concurrent delivery goroutines per
// subscription's queue drain loop. Since each subscription drains its
// own queue serially (to preserve per-topic, per-subscriber order),
// this only affects how many subscriptions may be concurrently
// draining across the whole bus; it is enforced with a semaphore.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.workers = n
		}
	}
}

// New creates a Bus. Call Start to begin delivering, and Close to stop.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string][]*subscription),
		errCh:       make(chan error, 16),
		workers:     8,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Errors returns the channel errors are delivered on. Callers should
// drain it; an error on this channel signals a fatal condition per
// spec §7 and the caller should stop the pipeline.
func (b *Bus) Errors() <-chan error {
	return b.errCh
}

// Subscribe registers a handler for a topic. Must be called before
// Start. There is no way to unsubscribe.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{
		topic:   topic,
		handler: handler,
		queue:   make(chan Message, 256),
		done:    make(chan struct{}),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
}

// Start launches one drain goroutine per subscription, bounded to
// b.workers concurrently-active drains via a semaphore.
func (b *Bus) Start(ctx context.Context) {
	sem := make(chan struct{}, b.workers)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			go b.drain(ctx, sub, sem)
		}
	}
}

func (b *Bus) drain(ctx context.Context, sub *subscription, sem chan struct{}) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.queue:
			if !ok {
				return
			}
			sem <- struct{}{}
			err := sub.handler(ctx, msg)
			<-sem
			if err != nil {
				select {
				case b.errCh <- err:
				default:
				}
			}
		}
	}
}

// Publish delivers msg to every subscriber of topic, in call order.
// Publish blocks when a subscriber's queue is full, providing the
// backpressure spec §5 describes propagating up to the chain source.
func (b *Bus) Publish(ctx context.Context, topic string, msg Message) {
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub.queue <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Close closes every subscription's queue, letting drain loops finish
// in-flight work and exit. It does not prevent later Subscribe calls.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
}
