// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Command metrics-demo runs a standalone Prometheus exporter and feeds its
// collectors synthetic handshake, session, and crypto samples (no SPDM
// exchange runs) so /metrics has data to show.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sage-x-project/spdm-requester/internal/metrics"
)

func main() {
	fmt.Println("SPDM Requester Metrics Demo")
	fmt.Println("===========================")
	fmt.Println()

	metricsAddr := ":9090"
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		fmt.Printf("metrics server listening on http://localhost%s/metrics\n", metricsAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	fmt.Println()

	fmt.Println("generating sample metrics...")
	fmt.Println()
	simulateActivity()

	fmt.Println()
	fmt.Println("demo running, access metrics at:")
	fmt.Printf("   http://localhost%s/metrics\n", metricsAddr)
	fmt.Println()
	fmt.Println("sample queries:")
	fmt.Printf("   curl localhost%s/metrics | grep spdm_requester_handshakes\n", metricsAddr)
	fmt.Printf("   curl localhost%s/metrics | grep spdm_requester_sessions\n", metricsAddr)
	fmt.Printf("   curl localhost%s/metrics | grep spdm_requester_crypto\n", metricsAddr)
	fmt.Println()
	fmt.Println("press Ctrl+C to stop...")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nshutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	fmt.Println("done")
}

// simulateActivity pokes the Prometheus collectors and the in-process
// HandshakeStatsCollector directly, standing in for a real handshake run
// against a Responder so the exporter has nonzero samples to show.
func simulateActivity() {
	fmt.Println("  simulating handshakes...")
	for i := 0; i < 5; i++ {
		metrics.HandshakesInitiated.WithLabelValues("requester").Inc()
		metrics.HandshakeDuration.WithLabelValues("negotiate").Observe(0.01)
		metrics.HandshakeDuration.WithLabelValues("authenticate").Observe(0.05)
		metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	}
	metrics.HandshakesInitiated.WithLabelValues("requester").Inc()
	metrics.HandshakesFailed.WithLabelValues("verify_fail").Inc()
	metrics.HandshakesInitiated.WithLabelValues("requester").Inc()
	metrics.HandshakesFailed.WithLabelValues("timeout").Inc()

	fmt.Println("  simulating sessions...")
	for i := 0; i < 3; i++ {
		metrics.SessionsCreated.WithLabelValues("success").Inc()
		metrics.SessionsActive.Inc()
		metrics.SessionDuration.WithLabelValues("key_exchange").Observe(0.02)
		metrics.SessionMessageSize.WithLabelValues("outbound").Observe(256)
		metrics.SessionMessageSize.WithLabelValues("inbound").Observe(512)
	}
	metrics.SessionsClosed.Inc()
	metrics.SessionsActive.Dec()

	fmt.Println("  simulating crypto operations...")
	stats := metrics.GlobalStats()
	for i := 0; i < 6; i++ {
		metrics.CryptoOperations.WithLabelValues("sign", "ecdsa_p256").Inc()
		metrics.CryptoOperationDuration.WithLabelValues("sign", "ecdsa_p256").Observe(0.001)
		stats.RecordSign(2 * time.Millisecond)

		metrics.CryptoOperations.WithLabelValues("verify", "ecdsa_p256").Inc()
		metrics.CryptoOperationDuration.WithLabelValues("verify", "ecdsa_p256").Observe(0.0015)
		stats.RecordVerify(true, 3*time.Millisecond)
	}
	stats.RecordSessionEstablish(40 * time.Millisecond)

	snap := stats.GetSnapshot()
	fmt.Println("  sample metrics generated")
	fmt.Println()
	fmt.Println("in-process stats snapshot:")
	fmt.Printf("   sign ops: %d (p95 %dus)\n", snap.SignOperations, snap.P95SignMicros)
	fmt.Printf("   verify ops: %d, success rate %.1f%%\n", snap.VerifyOperations, snap.VerifySuccessRate())
	fmt.Printf("   sessions established: %d (p95 %dus)\n", snap.SessionsEstablished, snap.P95SessionEstablishMicros)
}
