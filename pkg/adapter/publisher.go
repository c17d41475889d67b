// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

// Publisher handles message publication to RabbitMQ with reconnection support.
// It manages the AMQP channel, publisher configuration, and error notifications.
type Publisher struct {
	// con is the parent connection wrapper for reconnection logic.
	con *Con
	// notifyChan receives connection-close notifications for reconnection.
	notifyChan chan *amqp091.Error
	// rabChan is the AMQP channel used for publishing messages.
	rabChan *amqp091.Channel
	// cfg stores publisher settings like routing key and AppId.
	cfg PublisherConfig
	// isClosed indicates whether the publisher has been closed.
	isClosed atomic.Bool
}

// newPublisher initializes a Publisher: opens a dedicated channel and sets up mimetype detection.
func newPublisher(c *Con, notifyCh chan *amqp091.Error, cfg PublisherConfig) (*Publisher, error) {
	c.mute.RLock()
	rabbitChan, err := c.connection.Channel()
	c.mute.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("create publish channel: %w", err)
	}

	mimetype.SetLimit(mimeReadLimit)

	return &Publisher{
		con:        c,
		notifyChan: notifyCh,
		rabChan:    rabbitChan,
		cfg:        cfg,
	}, nil
}

// Publish sends the frame to the default exchange under the configured
// routing key with the mandatory flag set. It handles reconnection
// transparently and ensures in-flight messages are tracked.
func (p *Publisher) Publish(ctx context.Context, msg broker.Publishing) error {
	p.con.cons.Add(1)
	defer p.con.cons.Done()

	for !p.isClosed.Load() {
		select {
		case <-p.con.stop:
			return ConnClosedError{}
		case val, ok := <-p.notifyChan:
			if err := p.reconnectInit(val, ok); err != nil && p.con.logging {
				log.Printf("reconnect init: %v", err)
			}
		default:
			if err := p.rabChan.PublishWithContext(setPublisherConfig(ctx, p.cfg, msg)); err != nil {
				if errors.Is(err, amqp091.ErrClosed) {
					continue
				}

				return err
			}

			return nil
		}
	}

	return PublisherClosedError{}
}

// setPublisherConfig maps PublisherConfig and the frame into AMQP publish arguments.
// Frames go out persistent when configured; the content type falls back to
// mimetype detection when the caller left it empty.
//
//nolint:gocritic // returning multiple values is justified in this context
func setPublisherConfig(ctx context.Context, cfg PublisherConfig, frame broker.Publishing) (_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) {
	contentType := frame.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(frame.Body).String()
	}

	messageID := frame.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	msg = amqp091.Publishing{
		ContentType:  contentType,
		Body:         frame.Body,
		AppId:        cfg.AppId,
		MessageId:    messageID,
		DeliveryMode: deliveryMode(cfg.MessagePersistent),
	}

	return ctx, "", cfg.RoutingKey, true, false, msg
}

// deliveryMode maps the persistence flag to the AMQP delivery mode.
func deliveryMode(persistent bool) uint8 {
	if persistent {
		return amqp091.Persistent
	}

	return amqp091.Transient
}

// reconnectInit handles AMQP errors by re-establishing the publisher channel.
func (p *Publisher) reconnectInit(amqpErr *amqp091.Error, isValid bool) error {
	if !isValid {
		return nil
	}

	p.con.reconnect(amqpErr)

	p.con.mute.RLock()
	p.notifyChan = p.con.createNotifyChan()

	rabbitChan, err := p.con.connection.Channel()
	p.con.mute.RUnlock()
	if err != nil {
		return fmt.Errorf("create publisher channel: %w", err)
	}

	p.rabChan = rabbitChan

	return nil
}

// Close marks the publisher as closed and closes the AMQP channel.
func (p *Publisher) Close() error {
	p.isClosed.Store(true)

	if err := p.rabChan.Close(); err != nil {
		return fmt.Errorf("close publisher channel: %w", err)
	}

	return nil
}
