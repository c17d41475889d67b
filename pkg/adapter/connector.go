// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

// Con manages a RabbitMQ AMQP091 connection with automatic reconnection.
// It holds the active connection, target URI, client configuration, and coordinates
// reconnection and shutdown across consumers and publishers:
//   - connection: active AMQP091 connection
//   - url: broker URI for dialing
//   - cfg: AMQP091 client configuration
//   - stop: channel signaling the reconnection loop to exit
//   - cons: WaitGroup tracking active consumers and publishers for graceful shutdown
//   - logging: flag to enable verbose log output
//   - maxReconnectTime: maximum delay for exponential backoff on reconnect
//   - mute: mutex protecting reconnection setup
type Con struct {
	// connection holds the active AMQP connection.
	connection *amqp091.Connection
	// url is the target URI for dialing the broker.
	url *url.URL
	// stop signals the reconnection loop to exit.
	stop chan struct{}
	// cfg stores the AMQP client configuration.
	cfg amqp091.Config
	// cons tracks active consumers to allow graceful shutdown.
	cons sync.WaitGroup
	// logging toggles verbose log output for debugging.
	logging bool
	// maxReconnectTime caps the exponential backoff delay.
	maxReconnectTime time.Duration
	// mute serializes access during reconnection setup.
	mute sync.RWMutex
}

// Dial establishes an AMQP connection using the provided client configuration.
// It returns a Con instance ready to check queues and create publishers/consumers.
func Dial(cfg *Client) (*Con, error) {
	if cfg == nil {
		return nil, ConConfEmptyError{}
	}

	const stdMaxTime = 32 * time.Second

	var (
		clientCfg = amqp091.Config{
			SASL: []amqp091.Authentication{
				&amqp091.PlainAuth{Username: cfg.Username, Password: cfg.Password},
			},
			Vhost:      cfg.VHost,
			Properties: cfg.Properties,
			Heartbeat:  cfg.TcpHeartBeat,
		}
		maxTime = cfg.MaxReconnectTime
		uri     = &url.URL{
			Scheme: scheme(cfg.TLS),
			Host:   hostPort(cfg.Host, cfg.Port),
		}
	)

	if maxTime == 0 {
		maxTime = stdMaxTime
	}

	con, err := amqp091.DialConfig(uri.String(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("dial amqp091: %w", err)
	}

	return &Con{
		connection:       con,
		url:              uri,
		cfg:              clientCfg,
		stop:             make(chan struct{}),
		maxReconnectTime: maxTime,
		logging:          cfg.Logging,
	}, nil
}

// scheme picks the AMQP URI scheme for the transport security flag.
func scheme(tls bool) string {
	if tls {
		return "amqps"
	}

	return "amqp"
}

// hostPort joins host and port, leaving a bare host when port is zero so the
// driver applies the scheme default.
func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// reconnect triggers the reconnection sequence upon connection loss.
// TryLock ensures multiple errors in quick succession do not spawn
// multiple loops; losers wait for the winner to finish.
func (c *Con) reconnect(err error) {
	if c.mute.TryLock() {
		if c.logging {
			log.Printf("rabbit connection lost: %v", err)
		}

		c.reconnectLoop()
		c.mute.Unlock()

		return
	}

	c.mute.RLock()
	//nolint:staticcheck // empty section: waiting for the active reconnect to finish
	c.mute.RUnlock()
}

// reconnectLoop attempts to re-establish the AMQP connection using exponential backoff.
// It doubles the wait time after each failed attempt, capped by maxReconnectTime.
// The loop exits when stop is closed or a new connection is successfully made.
func (c *Con) reconnectLoop() {
	for waitTime, attempt := time.Second, 1; true; waitTime, attempt = waitTime<<1, attempt+1 {
		if waitTime > c.maxReconnectTime {
			waitTime = c.maxReconnectTime
		}
		select {
		case <-c.stop:
			return
		case <-time.After(waitTime):
			if c.logging {
				log.Printf("rabbit reconnect attempt %d", attempt)
			}

			con, err := amqp091.DialConfig(c.url.String(), c.cfg)
			if err != nil {
				continue
			}

			c.connection = con
			if c.logging {
				log.Print("rabbit reconnect success")
			}

			return
		}
	}
}

// CheckQueue declares the queue passively: it succeeds only when the queue
// already exists on the broker and fails without creating anything.
func (c *Con) CheckQueue(name string) error {
	_, err := c.inspect(name)

	return err
}

// MessageCount returns the broker-reported depth of the named queue.
func (c *Con) MessageCount(name string) (int, error) {
	queue, err := c.inspect(name)
	if err != nil {
		return 0, err
	}

	return queue.Messages, nil
}

// inspect opens a throwaway channel and passively declares the queue.
func (c *Con) inspect(name string) (amqp091.Queue, error) {
	c.mute.RLock()
	ch, err := c.connection.Channel()
	c.mute.RUnlock()
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("create channel: %w", err)
	}

	defer func() {
		if err := ch.Close(); err != nil && c.logging {
			log.Printf("close channel: %v", err)
		}
	}()

	queue, err := ch.QueueInspect(name)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("inspect queue %s: %w", name, err)
	}

	return queue, nil
}

// CreateConsumer returns a new broker.Consumer instance or an error ConsumerConfEmptyError if the configuration is nil.
func (c *Con) CreateConsumer(cfg *ConsumerConfig) (broker.Consumer, error) {
	if cfg == nil {
		return nil, ConsumerConfEmptyError{}
	}

	return newConsumer(c, c.createNotifyChan(), *cfg)
}

// CreatePublisher returns a new broker.Publisher instance or an error PublisherConfEmptyError if the configuration is nil.
func (c *Con) CreatePublisher(cfg *PublisherConfig) (broker.Publisher, error) {
	if cfg == nil {
		return nil, PublisherConfEmptyError{}
	}

	return newPublisher(c, c.createNotifyChan(), *cfg)
}

// createNotifyChan returns a channel to receive AMQP connection close notifications.
func (c *Con) createNotifyChan() chan *amqp091.Error {
	return c.connection.NotifyClose(make(chan *amqp091.Error, 1))
}

// Close gracefully shuts down the connection, waiting for consumers to finish before closing.
func (c *Con) Close() error {
	close(c.stop)

	c.cons.Wait()

	if err := c.connection.Close(); err != nil {
		return fmt.Errorf("close connection error: %w", err)
	}

	return nil
}
