// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package parcel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
	"github.com/GwynCerbin/go_parcel/pkg/crypt"
	"github.com/GwynCerbin/go_parcel/pkg/envelope"
)

// Endpoint is a named configuration targeting one broker queue, with
// optional encryption and object-store settings. Both optional settings are
// independently overridable per call and fall back to the process-wide
// defaults when absent.
type Endpoint struct {
	// Name identifies the endpoint in the registry.
	Name string `env:"NAME" yaml:"name"`
	// Endpoint is the broker-side identifier: the queue name and the
	// routing key frames are published under.
	Endpoint string `env:"ENDPOINT" yaml:"endpoint"`

	Username     string        `env:"USERNAME" yaml:"-"`
	Password     string        `env:"PASSWORD" yaml:"-"`
	Host         string        `env:"HOST" yaml:"host"`
	Port         int           `env:"PORT" yaml:"port"`
	VHost        string        `env:"VHOST" yaml:"vhost"`
	TLS          bool          `env:"TLS" yaml:"tls"`
	TcpHeartBeat time.Duration `env:"HEARTBEAT" yaml:"tcp_heartbeat"`

	// Format selects the wire and at-rest serialization, default json.
	Format envelope.Format `env:"FORMAT" yaml:"format"`
	// SuppressLogs silences the structured log records for this endpoint.
	SuppressLogs bool `env:"SUPPRESS_LOGS" yaml:"suppress_logs"`

	// Encryption enables transport encryption when set.
	Encryption *crypt.Config `yaml:"encryption"`
	// Store enables payload offload to the object store when set.
	Store *StoreConfig `yaml:"store"`
}

// StoreConfig describes the object-store side of an endpoint.
type StoreConfig struct {
	// BucketPrefix is the leading segment of every derived object key.
	BucketPrefix string `env:"BUCKET_PREFIX" yaml:"bucket_prefix"`
	// EncryptObjects encrypts the whole document at rest. It only takes
	// effect when an encryption config is present: Encryption below, or
	// the call's effective transport encryption as fallback.
	EncryptObjects bool `env:"ENCRYPT_OBJECTS" yaml:"encrypt_objects"`
	// Encryption is the at-rest key material. Optional; lets objects be
	// encrypted at rest while frames travel in the clear.
	Encryption *crypt.Config `yaml:"encryption"`
	// Objects is the object-store client documents are written through.
	Objects broker.ObjectStore `yaml:"-"`
}

// format returns the endpoint serialization format, defaulting to JSON.
func (e *Endpoint) format() envelope.Format {
	if e.Format == "" {
		return envelope.JSON
	}

	return e.Format
}

// validate checks the fields every endpoint needs before registration.
func (e *Endpoint) validate() error {
	if e == nil {
		return EndpointConfEmptyError{}
	}

	if e.Name == "" || e.Endpoint == "" {
		return IncompleteEndpointError{Name: e.Name}
	}

	if !e.format().Valid() {
		return envelope.UnknownFormatError{Format: e.Format}
	}

	return nil
}

// endpointsFile is the YAML document shape LoadEndpoints reads.
type endpointsFile struct {
	Endpoints []*Endpoint `yaml:"endpoints"`
}

// LoadEndpoints reads an endpoint set from a YAML file. Credentials and
// object-store clients are not part of the file and must be filled in by
// the caller before registration.
func LoadEndpoints(path string) ([]*Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var file endpointsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, ep := range file.Endpoints {
		if err := ep.validate(); err != nil {
			return nil, err
		}
	}

	return file.Endpoints, nil
}
