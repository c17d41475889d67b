// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"github.com/GwynCerbin/go_parcel/pkg/adapter"
	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

// amqpTransport adapts one dialed AMQP connection to the Transport surface.
type amqpTransport struct {
	con *adapter.Con
}

// dialAMQP is the default Dialer: it opens a RabbitMQ connection with the
// endpoint's address, credentials and transport security flag.
func dialAMQP(ep *Endpoint) (Transport, error) {
	con, err := adapter.Dial(&adapter.Client{
		Username:     ep.Username,
		Password:     ep.Password,
		Host:         ep.Host,
		Port:         ep.Port,
		VHost:        ep.VHost,
		TLS:          ep.TLS,
		TcpHeartBeat: ep.TcpHeartBeat,
		Logging:      !ep.SuppressLogs,
	})
	if err != nil {
		return nil, err
	}

	return &amqpTransport{con: con}, nil
}

// Publisher opens a persistent-delivery publisher routed to the endpoint
// identifier on the default exchange.
func (t *amqpTransport) Publisher(ep *Endpoint) (broker.Publisher, error) {
	return t.con.CreatePublisher(&adapter.PublisherConfig{
		RoutingKey:        ep.Endpoint,
		MessagePersistent: true,
	})
}

// Consumer opens a prefetch-1 manual-ack consumer on the endpoint queue.
// The queue is checked passively; a missing queue is a fatal endpoint error.
func (t *amqpTransport) Consumer(ep *Endpoint) (broker.Consumer, error) {
	return t.con.CreateConsumer(&adapter.ConsumerConfig{
		QueueName: ep.Endpoint,
		Prefetch:  1,
	})
}

// MessageCount reports the queue depth via passive declaration.
func (t *amqpTransport) MessageCount(ep *Endpoint) (int, error) {
	return t.con.MessageCount(ep.Endpoint)
}

// Close shuts the underlying connection down.
func (t *amqpTransport) Close() error {
	return t.con.Close()
}
