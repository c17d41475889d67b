// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package parcel brokers typed, structured messages between application
// code and an AMQP 0-9-1 broker. Two capabilities layer on top of the raw
// transport: payload offload to an external object store, where only a
// small reference travels through the broker, and envelope-preserving
// symmetric encryption. A single Service hosts many named endpoints;
// per-call overrides compose with endpoint settings and process-wide
// defaults.
package parcel

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
	"github.com/GwynCerbin/go_parcel/pkg/crypt"
)

// Transport opens broker resources for one endpoint. The default
// implementation dials RabbitMQ through pkg/adapter; tests substitute an
// in-memory one.
type Transport interface {
	// Publisher returns a publisher bound to the endpoint identifier.
	Publisher(ep *Endpoint) (broker.Publisher, error)

	// Consumer returns a manual-ack consumer on the endpoint queue with
	// prefetch 1. The queue must already exist.
	Consumer(ep *Endpoint) (broker.Consumer, error)

	// MessageCount reports the broker queue depth for the endpoint.
	MessageCount(ep *Endpoint) (int, error)

	// Close tears down the underlying connection.
	Close() error
}

// Dialer opens a Transport for an endpoint. Connections are cached per
// endpoint by the Service and reused until Disconnect.
type Dialer func(ep *Endpoint) (Transport, error)

// binding pairs a registered endpoint with its memoized broker resources.
// The mutex serializes lazy initialization so two callers never open two
// connections for the same endpoint.
type binding struct {
	ep *Endpoint

	mu        sync.Mutex
	transport Transport
	publisher broker.Publisher
}

// Service is the endpoint registry and call façade. Endpoints are
// deduplicated case-insensitively on both name and endpoint identifier and
// are never removed. Registration is expected during startup but is safe
// under concurrency.
type Service struct {
	mu      sync.RWMutex
	byName  map[string]*binding
	byQueue map[string]*binding

	defaultEndpoint   *binding
	defaultEncryption *crypt.Config
	defaultStore      *StoreConfig

	dial   Dialer
	logger *zap.Logger
}

// Option adjusts a Service at construction time.
type Option func(*Service)

// WithLogger replaces the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDialer replaces the AMQP dialer, mainly for tests.
func WithDialer(dial Dialer) Option {
	return func(s *Service) {
		s.dial = dial
	}
}

// NewService constructs an empty registry backed by the AMQP transport.
func NewService(opts ...Option) *Service {
	s := &Service{
		byName:  make(map[string]*binding),
		byQueue: make(map[string]*binding),
		dial:    dialAMQP,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	return s
}

// RegisterEndpoint adds an endpoint to the registry. A second registration
// under an already known name or endpoint identifier is deduplicated and
// keeps the first entry.
func (s *Service) RegisterEndpoint(ep *Endpoint) error {
	if err := ep.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.register(ep)

	return nil
}

// register inserts under both keys unless either is taken. Callers hold the
// write lock.
func (s *Service) register(ep *Endpoint) *binding {
	name, queue := fold(ep.Name), fold(ep.Endpoint)

	if b, ok := s.byName[name]; ok {
		return b
	}

	if b, ok := s.byQueue[queue]; ok {
		return b
	}

	b := &binding{ep: ep}
	s.byName[name] = b
	s.byQueue[queue] = b

	return b
}

// RegisterEndpoints adds every endpoint of the slice, stopping on the first
// invalid one.
func (s *Service) RegisterEndpoints(eps []*Endpoint) error {
	for _, ep := range eps {
		if err := s.RegisterEndpoint(ep); err != nil {
			return err
		}
	}

	return nil
}

// RegisterDefaultEndpoint registers the endpoint and makes it the target of
// calls that carry no endpoint reference.
func (s *Service) RegisterDefaultEndpoint(ep *Endpoint) error {
	if err := ep.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultEndpoint = s.register(ep)

	return nil
}

// RegisterDefaultEncryption sets the process-wide encryption fallback used
// when neither the call nor the endpoint carries one.
func (s *Service) RegisterDefaultEncryption(cfg *crypt.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultEncryption = cfg
}

// RegisterDefaultObjectStore sets the process-wide object-store fallback
// used when neither the call nor the endpoint carries one.
func (s *Service) RegisterDefaultObjectStore(cfg *StoreConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultStore = cfg
}

// To starts a fluent call against the endpoint registered under name. An
// empty name targets the default endpoint.
func (s *Service) To(name string) *Call {
	return &Call{svc: s, name: name}
}

// ToEndpoint starts a fluent call against the given endpoint, registering
// it on first use.
func (s *Service) ToEndpoint(ep *Endpoint) *Call {
	c := &Call{svc: s}

	if err := ep.validate(); err != nil {
		c.err = err

		return c
	}

	s.mu.Lock()
	c.bound = s.register(ep)
	s.mu.Unlock()

	return c
}

// lookup resolves a binding by name, falling back to the default endpoint
// for an empty name.
func (s *Service) lookup(name string) (*binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		if s.defaultEndpoint == nil {
			return nil, NoDefaultEndpointError{}
		}

		return s.defaultEndpoint, nil
	}

	if b, ok := s.byName[fold(name)]; ok {
		return b, nil
	}

	return nil, UnknownEndpointError{Name: name}
}

// MessageCount returns the broker-reported depth of the named queue, or of
// the default endpoint's queue for an empty name.
func (s *Service) MessageCount(name string) (int, error) {
	b, err := s.lookup(name)
	if err != nil {
		return 0, err
	}

	t, err := s.connect(b)
	if err != nil {
		return 0, err
	}

	return t.MessageCount(b.ep)
}

// Disconnect closes the cached connections of the named endpoints, or every
// cached connection when called without names. Endpoints stay registered;
// the next use reconnects.
func (s *Service) Disconnect(names ...string) error {
	var targets []*binding

	s.mu.RLock()
	if len(names) == 0 {
		for _, b := range s.byName {
			targets = append(targets, b)
		}
	} else {
		for _, name := range names {
			if b, ok := s.byName[fold(name)]; ok {
				targets = append(targets, b)
			}
		}
	}
	s.mu.RUnlock()

	var firstErr error

	for _, b := range targets {
		b.mu.Lock()
		t := b.transport
		b.transport = nil
		b.publisher = nil
		b.mu.Unlock()

		if t == nil {
			continue
		}

		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// connect returns the endpoint's cached transport, dialing on first use.
func (s *Service) connect(b *binding) (Transport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.transport != nil {
		return b.transport, nil
	}

	t, err := s.dial(b.ep)
	if err != nil {
		return nil, err
	}

	b.transport = t

	return t, nil
}

// publisherFor returns the endpoint's cached publisher, creating it on
// first use.
func (s *Service) publisherFor(b *binding) (broker.Publisher, error) {
	t, err := s.connect(b)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publisher != nil {
		return b.publisher, nil
	}

	pub, err := t.Publisher(b.ep)
	if err != nil {
		return nil, err
	}

	b.publisher = pub

	return pub, nil
}

// endpointLogger returns the service logger for the endpoint, muted when
// the endpoint suppresses logs.
func (s *Service) endpointLogger(ep *Endpoint) *zap.Logger {
	if ep.SuppressLogs {
		return zap.NewNop()
	}

	return s.logger.With(zap.String("endpoint", ep.Name))
}

// fold normalizes registry keys for case-insensitive matching.
func fold(s string) string {
	return strings.ToLower(s)
}
