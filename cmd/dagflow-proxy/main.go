// Copyright 2025 The Dagflow Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command dagflow-proxy is a small reference harness that loads a graph
// config from disk, registers the stock node types, and serves HTTP
// traffic through the engine via internal/devhost.
//
// Usage:
//
//	dagflow-proxy -graph graph.json -http :8080 -upstream http://localhost:8081
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"dagflow/internal/devhost"
	"dagflow/internal/dlog"
	"dagflow/internal/engine"
	"dagflow/internal/tracestore"

	_ "dagflow/plugin/nodes/call"
	_ "dagflow/plugin/nodes/jq"
	_ "dagflow/plugin/nodes/response"
	_ "dagflow/plugin/nodes/template"
)

func main() {
	graphPath := flag.String("graph", "graph.json", "path to the JSON graph config")
	addr := flag.String("http", ":8080", "HTTP listen address")
	upstream := flag.String("upstream", "", "base URL of the service this proxy fronts; empty serves filter-only graphs (a Response node ends every transaction)")
	dispatchTimeout := flag.Duration("dispatch_timeout", 10*time.Second, "default client timeout applied to subrequests and the upstream round trip")
	logLevel := flag.String("log_level", "info", "logrus level: debug, info, warn, error")
	logFormat := flag.String("log_format", "text", "log output format: text or json")
	redisAddr := flag.String("redis_addr", "", "Redis address for debug trace archival; empty disables archival")
	traceTTL := flag.Duration("trace_ttl", 24*time.Hour, "how long an archived debug trace is kept in Redis")
	flag.Parse()

	if *graphPath == "" {
		*graphPath = "graph.json"
	}
	if *addr == "" {
		*addr = ":8080"
	}
	if *dispatchTimeout <= 0 {
		*dispatchTimeout = 10 * time.Second
	}

	logger := dlog.New(dlog.Config{Level: *logLevel, Format: *logFormat})

	graphBytes, err := os.ReadFile(*graphPath)
	if err != nil {
		log.Fatalf("reading graph config %s: %v", *graphPath, err)
	}
	config, err := engine.Load(graphBytes)
	if err != nil {
		log.Fatalf("loading graph config %s: %v", *graphPath, err)
	}

	var traceSink tracestore.Sink
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		traceSink = tracestore.NewRedisSink(client, *traceTTL)
	} else {
		traceSink = tracestore.NewMemorySink()
	}

	handler := &devhost.Handler{
		Config:   config,
		Upstream: *upstream,
		Client:   &http.Client{Timeout: *dispatchTimeout},
		Logger:   logger,
		NewDriverOptions: func(txID string) []engine.DriverOption {
			return []engine.DriverOption{engine.WithTraceSink(traceSink, txID)}
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "time": time.Now().UTC()})
	})
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Debugf("dagflow-proxy listening on %s, graph=%s, upstream=%q", *addr, *graphPath, *upstream)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
