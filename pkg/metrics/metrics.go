// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace     = "parcel"
	labelEndpoint = "endpoint"
)

var (
	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Total number of messages published to the broker.",
	}, []string{labelEndpoint})

	PublishErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_error_total",
		Help:      "Total number of failed publish attempts.",
	}, []string{labelEndpoint})

	OffloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offload_total",
		Help:      "Total number of payloads offloaded to the object store.",
	}, []string{labelEndpoint})

	ConsumeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consume_total",
		Help:      "Total number of deliveries received from the broker.",
	}, []string{labelEndpoint})

	AckTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ack_total",
		Help:      "Total number of deliveries acknowledged.",
	}, []string{labelEndpoint})

	RejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reject_total",
		Help:      "Total number of deliveries rejected.",
	}, []string{labelEndpoint})
)
