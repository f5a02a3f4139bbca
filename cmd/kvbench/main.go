// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package main provides the entry point for kvbench, a distributed
// key-value store benchmark harness. It parses the CLI and stage-file
// surfaces, selects a KvClient backend, and drives the run to completion
// or until an OS signal requests graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/orchestrator"
	"kvbench/internal/bench/reporter"
	"kvbench/internal/bench/stage"
	"kvbench/internal/config"
)

const (
	exitOK            = 0
	exitUsage         = 1
	exitAsyncInit     = 2
	exitBadHost       = 3
	exitThreadCreate  = -1
)

func main() {
	os.Exit(run())
}

func run() int {
	keyStart := flag.Int64("start_key", 0, "First key of the run's default key range")
	keyCount := flag.Int64("key_count", 1000000, "Number of keys in the run's default key range")
	objectSpec := flag.String("object_spec", "I4", "Default object-spec string, used by stages that omit object-spec")
	stagesFile := flag.String("workload_stages", "", "Path to a YAML stage-file (required)")
	numThreads := flag.Int("threads", 16, "Number of worker threads")
	async := flag.Bool("async", false, "Use the asynchronous event-loop workers instead of blocking sync workers")
	asyncMaxCommands := flag.Int("async_max_commands", 100, "Max in-flight async commands per worker")
	debug := flag.Bool("debug", false, "Log individual operation errors")
	latencyColumns := flag.Int("latency_columns", 4, "Number of linear histogram range tiers")
	latencyShift := flag.Int("latency_shift", 0, "Bit-shift applied to the default linear histogram bucket widths")
	hdrPercentiles := flag.String("hdr_percentiles", "50,90,99,99.9", "Comma-separated HDR percentiles to report")
	histogramFile := flag.String("histogram_output_file", "", "Append-mode file for linear histogram snapshots")
	histogramPeriod := flag.Duration("histogram_period", 10*time.Second, "Reporting period")
	hdrOutputDir := flag.String("hdr_output_dir", "", "Directory for per-period HDR histogram dumps (reserved for future use)")
	compressionRatio := flag.Float64("compression_ratio", 0, "Fraction of generated binary payload that is compressible")
	backend := flag.String("backend", "mock", "KvClient backend: mock, redis, postgres")
	host := flag.String("host", "", "Backend host:port (required for redis/postgres); a comma-separated list shards keys across multiple instances by rendezvous hashing")
	namespace := flag.String("namespace", "kvbench", "Namespace/keyspace prefix")
	set := flag.String("set", "default", "Set/table name")
	txnLimit := flag.Int64("txn_limit", 0, "Cumulative transaction count at which the run shuts down; 0 disables")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address")
	flag.Parse()

	if *stagesFile == "" {
		fmt.Fprintln(os.Stderr, "kvbench: -workload_stages is required")
		return exitUsage
	}
	if *numThreads < 1 {
		fmt.Fprintln(os.Stderr, "kvbench: -threads must be >= 1")
		return exitThreadCreate
	}

	data, err := os.ReadFile(*stagesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvbench: reading %s: %v\n", *stagesFile, err)
		return exitUsage
	}
	stages, err := config.ParseStagesYAML(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvbench: %v\n", err)
		return exitUsage
	}
	fillDefaults(stages, *keyStart, *keyStart+*keyCount, *objectSpec)

	percentiles, err := parsePercentiles(*hdrPercentiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvbench: -hdr_percentiles: %v\n", err)
		return exitUsage
	}

	kv, closeKV, code := buildClient(*backend, *host, *namespace, *set)
	if code != exitOK {
		return code
	}
	defer closeKV()

	if *async {
		// The event-loop workers require the backend to already be
		// reachable before any worker is spawned; a dial failure here is
		// the harness's async-init failure, distinct from a bad host
		// supplied for a sync run (caught above in buildClient).
		if err := pingClient(kv); err != nil {
			fmt.Fprintf(os.Stderr, "kvbench: async init: %v\n", err)
			return exitAsyncInit
		}
	}

	var metrics *reporter.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = reporter.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "kvbench: metrics server: %v\n", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	var histOut *os.File
	if *histogramFile != "" {
		f, err := os.OpenFile(*histogramFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kvbench: opening %s: %v\n", *histogramFile, err)
			return exitUsage
		}
		histOut = f
		defer f.Close()
	}
	_ = hdrOutputDir // reserved: per-period HDR dumps are not yet written to disk

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := orchestrator.Config{
		NumThreads:       *numThreads,
		Async:            *async,
		AsyncMaxInFlight: *asyncMaxCommands,
		HistogramRanges:  defaultHistogramRanges(*latencyColumns, *latencyShift),
		HdrEnabled:       true,
		HdrMinValue:      1,
		HdrMaxValue:      30_000_000,
		HdrSigFigs:       3,
		HdrPercentiles:   percentiles,
		ReportPeriod:     *histogramPeriod,
		Debug:            *debug,
		CompressionRatio: *compressionRatio,
		TxnLimit:         *txnLimit,
		Metrics:          metrics,
		StopCh:           ctx.Done(),
	}
	if histOut != nil {
		// Assigned only when non-nil: a nil *os.File stored unconditionally
		// in the io.Writer-typed field would carry a non-nil type
		// descriptor, so Reporter's HistOut == nil check would never fire.
		cfg.HistOut = histOut
	}

	resultCh := make(chan struct{})
	go func() {
		orchestrator.Run(kv, stages, cfg)
		close(resultCh)
	}()

	select {
	case <-resultCh:
	case <-ctx.Done():
		fmt.Println("\nkvbench: shutting down on signal...")
		<-resultCh // the run finishes its current stage's in-flight operations
		// (orchestrator.Config.StopCh) rather than stopping mid-operation.
	}

	return exitOK
}

// fillDefaults applies the CLI's default key range and object spec to any
// stage that didn't set its own, per the "Stage input" contract: stages
// are independently configurable but commonly share a run-wide default.
func fillDefaults(stages stage.Stages, keyStart, keyEnd int64, defaultObjectSpec string) {
	for i := range stages {
		s := &stages[i]
		if s.KeyStart == 0 && s.KeyEnd == 0 {
			s.KeyStart, s.KeyEnd = keyStart, keyEnd
		}
		if s.ObjSpec == nil {
			if spec, err := objspec.Parse(defaultObjectSpec); err == nil {
				s.ObjSpec = spec
			}
		}
	}
}

func parsePercentiles(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed percentile %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// defaultHistogramRanges builds latencyColumns contiguous linear ranges.
// Each range holds bucketsPerRange buckets, and each successive range's
// bucket width is 16x the last, shifted left by latencyShift - matching the
// "columns/shift" knobs named in spec.md §6.
func defaultHistogramRanges(columns, shift int) []histogram.Range {
	if columns < 1 {
		columns = 1
	}
	const bucketsPerRange = 100
	ranges := make([]histogram.Range, columns)
	width := int64(4) << uint(shift)
	var upper int64
	for i := 0; i < columns; i++ {
		upper += width * bucketsPerRange
		ranges[i] = histogram.Range{UpperBound: upper, Width: width}
		width *= 16
	}
	return ranges
}

// splitHosts parses -host's comma-separated shard-list form, trimming
// whitespace around each entry and dropping empties.
func splitHosts(host string) []string {
	var hosts []string
	for _, h := range strings.Split(host, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// buildClient dials backend at host, which may be a comma-separated list of
// shard addresses: more than one entry builds one KvClient per shard and
// wraps them in a Router, splitting keys across the cluster by rendezvous
// hashing instead of talking to a single instance.
func buildClient(backend, host, namespace, set string) (client.KvClient, func(), int) {
	switch backend {
	case "mock":
		return client.NewMock(), func() {}, exitOK
	case "redis":
		hosts := splitHosts(host)
		if len(hosts) == 0 {
			fmt.Fprintln(os.Stderr, "kvbench: -host is required for backend=redis")
			return nil, nil, exitUsage
		}
		shards := make([]client.KvClient, 0, len(hosts))
		var closers []func()
		closeAll := func() {
			for _, c := range closers {
				c()
			}
		}
		for _, h := range hosts {
			rdb := redis.NewClient(&redis.Options{Addr: h})
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := rdb.Ping(ctx).Err()
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "kvbench: connecting to redis at %s: %v\n", h, err)
				closeAll()
				return nil, nil, exitBadHost
			}
			shards = append(shards, client.NewRedisClient(rdb, namespace, set))
			closers = append(closers, func() { rdb.Close() })
		}
		if len(shards) == 1 {
			return shards[0], closeAll, exitOK
		}
		return client.NewRouter(shards), closeAll, exitOK
	case "postgres":
		hosts := splitHosts(host)
		if len(hosts) == 0 {
			fmt.Fprintln(os.Stderr, "kvbench: -host is required for backend=postgres")
			return nil, nil, exitUsage
		}
		shards := make([]client.KvClient, 0, len(hosts))
		var closers []func()
		closeAll := func() {
			for _, c := range closers {
				c()
			}
		}
		for _, h := range hosts {
			db, err := sql.Open("postgres", h)
			if err != nil {
				fmt.Fprintf(os.Stderr, "kvbench: opening postgres: %v\n", err)
				closeAll()
				return nil, nil, exitBadHost
			}
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = db.PingContext(ctx)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "kvbench: connecting to postgres at %s: %v\n", h, err)
				db.Close()
				closeAll()
				return nil, nil, exitBadHost
			}
			shards = append(shards, client.NewPostgresClient(db, namespace, set))
			closers = append(closers, func() { db.Close() })
		}
		if len(shards) == 1 {
			return shards[0], closeAll, exitOK
		}
		return client.NewRouter(shards), closeAll, exitOK
	default:
		fmt.Fprintf(os.Stderr, "kvbench: unknown backend %q\n", backend)
		return nil, nil, exitUsage
	}
}

func pingClient(kv client.KvClient) error {
	if rc, ok := kv.(*client.RedisClient); ok {
		return rc.Ping(context.Background())
	}
	return nil
}
