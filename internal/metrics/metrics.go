// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes Prometheus collectors for handshake, session,
// crypto, and message-layer activity, all registered against a private
// Registry rather than prometheus.DefaultRegisterer so a process embedding
// this module never collides with its own metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "spdm_requester"

// Registry is the private collector registry every metric in this package
// registers against via promauto.With(Registry).
var Registry = prometheus.NewRegistry()
