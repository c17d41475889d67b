// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

// fakeBroker is a single in-memory queue shared by the fake transport
// pieces. It records broker decisions for assertions.
type fakeBroker struct {
	mu          sync.Mutex
	frames      []broker.Publishing
	acked       int
	rejected    int
	nacked      int
	failPublish bool
}

func (b *fakeBroker) push(p broker.Publishing) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, p)
}

func (b *fakeBroker) pop() (broker.Publishing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return broker.Publishing{}, false
	}

	p := b.frames[0]
	b.frames = b.frames[1:]

	return p, true
}

func (b *fakeBroker) lastFrame() (broker.Publishing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return broker.Publishing{}, false
	}

	return b.frames[len(b.frames)-1], true
}

func (b *fakeBroker) depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.frames)
}

func (b *fakeBroker) decisions() (acked, rejected int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.acked, b.rejected
}

// fakeDialer returns a Dialer feeding every endpoint from the same broker
// and counts how often it is invoked.
func fakeDialer(b *fakeBroker, dials *int) Dialer {
	var mu sync.Mutex

	return func(*Endpoint) (Transport, error) {
		mu.Lock()
		if dials != nil {
			*dials++
		}
		mu.Unlock()

		return &fakeTransport{b: b}, nil
	}
}

type fakeTransport struct {
	b *fakeBroker
}

func (t *fakeTransport) Publisher(*Endpoint) (broker.Publisher, error) {
	return &fakePublisher{b: t.b}, nil
}

func (t *fakeTransport) Consumer(*Endpoint) (broker.Consumer, error) {
	return &fakeConsumer{b: t.b}, nil
}

func (t *fakeTransport) MessageCount(*Endpoint) (int, error) {
	return t.b.depth(), nil
}

func (t *fakeTransport) Close() error {
	return nil
}

type fakePublisher struct {
	b *fakeBroker
}

func (p *fakePublisher) Publish(_ context.Context, msg broker.Publishing) error {
	if p.b.failPublish {
		return errors.New("broker unavailable")
	}

	p.b.push(msg)

	return nil
}

func (p *fakePublisher) Close() error {
	return nil
}

type fakeConsumer struct {
	b *fakeBroker
}

func (c *fakeConsumer) Consume(ctx context.Context) (broker.Delivery, error) {
	for {
		if frame, ok := c.b.pop(); ok {
			return &fakeDelivery{b: c.b, frame: frame}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *fakeConsumer) Close() error {
	return nil
}

type fakeDelivery struct {
	b     *fakeBroker
	frame broker.Publishing
}

func (d *fakeDelivery) Headers() map[string]interface{} { return nil }
func (d *fakeDelivery) ContentType() string             { return d.frame.ContentType }
func (d *fakeDelivery) IsRedelivered() bool             { return false }
func (d *fakeDelivery) Body() []byte                    { return d.frame.Body }
func (d *fakeDelivery) RoutingKey() string              { return "" }

func (d *fakeDelivery) Ack() error {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()

	d.b.acked++

	return nil
}

func (d *fakeDelivery) Nack() error {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()

	d.b.nacked++

	return nil
}

func (d *fakeDelivery) Reject() error {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()

	d.b.rejected++

	return nil
}
