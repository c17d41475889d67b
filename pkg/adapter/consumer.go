// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

// Consumer manages message consumption from a RabbitMQ queue.
// It holds the channel, delivery stream, and reconnection notifications.
// The queue is declared passively and QoS is applied before consuming, so
// the broker bounds in-flight deliveries to the configured prefetch.
type Consumer struct {
	// con is the parent connection wrapper for reconnection logic.
	con *Con
	// rabChan is the AMQP channel used for consuming messages.
	rabChan *amqp091.Channel
	// notifyChan receives connection-close notifications for reconnection.
	notifyChan chan *amqp091.Error
	// workChan streams incoming deliveries to be processed.
	workChan <-chan amqp091.Delivery
	// cfg stores consumer configuration such as queue name and args.
	cfg ConsumerConfig
	// isClosed indicates whether the consumer has been closed.
	isClosed atomic.Bool

	jobs *sync.WaitGroup
}

// newConsumer initializes a Consumer: opens a channel, checks the queue,
// applies QoS, starts consuming, and returns the instance.
func newConsumer(c *Con, notifyCh chan *amqp091.Error, cfg ConsumerConfig) (*Consumer, error) {
	rabbitChan, msgCh, err := openConsumeChannel(c, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		con:        c,
		rabChan:    rabbitChan,
		notifyChan: notifyCh,
		cfg:        cfg,
		workChan:   msgCh,
		jobs:       new(sync.WaitGroup),
	}, nil
}

// openConsumeChannel prepares a channel for consuming: passive queue check,
// prefetch QoS, manual-ack consume.
func openConsumeChannel(c *Con, cfg ConsumerConfig) (*amqp091.Channel, <-chan amqp091.Delivery, error) {
	c.mute.RLock()
	rabbitChan, err := c.connection.Channel()
	c.mute.RUnlock()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if _, err := rabbitChan.QueueInspect(cfg.QueueName); err != nil {
		return nil, nil, fmt.Errorf("queue %s unavailable: %w", cfg.QueueName, err)
	}

	if err := rabbitChan.Qos(prefetch(cfg), 0, false); err != nil {
		return nil, nil, fmt.Errorf("set channel qos: %w", err)
	}

	msgCh, err := rabbitChan.Consume(setConsumerConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	return rabbitChan, msgCh, nil
}

// prefetch normalizes the configured prefetch count to at least one.
func prefetch(cfg ConsumerConfig) int {
	if cfg.Prefetch < 1 {
		return 1
	}

	return cfg.Prefetch
}

// setConsumerConfig maps our ConsumerConfig to the parameters expected by amqp091.Channel.Consume.
//
//nolint:gocritic // returning multiple values is justified in this context
func setConsumerConfig(cfg ConsumerConfig) (queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) {
	return cfg.QueueName, "", false, false, false, false, cfg.Args
}

// Consume retrieves the next broker.Delivery, or ConnClosedError if the connection is closed and
// ConsumerClosedError if the consumer is closed.
// It handles reconnection transparently using notifyChan and Con.reconnect.
// Context cancellation aborts the wait without taking a delivery.
func (c *Consumer) Consume(ctx context.Context) (broker.Delivery, error) {
	c.con.cons.Add(1)
	defer c.con.cons.Done()

	for !c.isClosed.Load() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.con.stop:
			return nil, ConnClosedError{}
		case val, ok := <-c.notifyChan:
			if err := c.reconnectInit(val, ok); err != nil && c.con.logging {
				log.Printf("reconnect init: %v", err)
			}
		case val, ok := <-c.workChan:
			if !ok {
				continue
			}
			c.jobs.Add(1)

			return broker.Delivery(&Delivery{
				deliver: val,
				wg:      c.jobs,
			}), nil
		}
	}

	c.jobs.Wait()

	return nil, ConsumerClosedError{}
}

// reconnectInit handles AMQP errors by re-establishing the consumer channel and re-subscribing.
func (c *Consumer) reconnectInit(amqpErr *amqp091.Error, isValid bool) error {
	if !isValid {
		return nil
	}

	c.con.reconnect(amqpErr)

	c.con.mute.RLock()
	c.notifyChan = c.con.createNotifyChan()
	c.con.mute.RUnlock()

	rabbitChan, msgCh, err := openConsumeChannel(c.con, c.cfg)
	if err != nil {
		return err
	}

	c.rabChan = rabbitChan
	c.workChan = msgCh

	return nil
}

// Close stops message consumption and closes the AMQP channel.
// It is safe to call after Consume has returned.
func (c *Consumer) Close() error {
	if !c.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	c.jobs.Wait()

	if err := c.rabChan.Close(); err != nil {
		return fmt.Errorf("close consumer channel: %w", err)
	}

	return nil
}
