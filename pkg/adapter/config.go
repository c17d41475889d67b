// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const mimeReadLimit = 512 //bytes that mime will read

// Client describes one AMQP broker connection.
type Client struct {
	Username         string        `env:"USERNAME" yaml:"-"`
	Password         string        `env:"PASSWORD" yaml:"-"`
	Host             string        `env:"HOST" yaml:"host"`
	Port             int           `env:"PORT" yaml:"port"`
	VHost            string        `env:"VHOST" yaml:"vhost"`
	TLS              bool          `env:"TLS" yaml:"tls"`
	TcpHeartBeat     time.Duration `env:"HEARTBEAT" yaml:"tcp_heartbeat"`
	Properties       amqp091.Table `env:"PROPERTIES" yaml:"properties"`
	MaxReconnectTime time.Duration `env:"RECONNECT" yaml:"reconnect"`
	Logging          bool          `env:"LOGGING" yaml:"logging"`
}

// ConsumerConfig describes one queue subscription. The queue is checked
// passively at creation time; a missing queue is a fatal error. Prefetch
// bounds in-flight unacknowledged deliveries and defaults to 1.
type ConsumerConfig struct {
	QueueName string        `env:"QUEUE" yaml:"queue"`
	Prefetch  int           `env:"PREFETCH" yaml:"prefetch"`
	Args      amqp091.Table `env:"ARGS" yaml:"args"`
}

// PublisherConfig describes one publishing target. Frames go to the default
// exchange under RoutingKey with the mandatory flag set.
type PublisherConfig struct {
	RoutingKey        string `env:"ROUTING" yaml:"routing_key"`
	MessagePersistent bool   `env:"PERSISTENT" yaml:"is_persistent"`
	AppId             string `env:"APP_ID" yaml:"app_id"`
}
