package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chunkkeeper"

var (
	// Registry is a dedicated Prometheus registry for all ChunkKeeper
	// metrics.
	Registry = prometheus.NewRegistry()

	// ChunkTotal counts chunk outcomes during a compression run.
	ChunkTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_total",
			Help:      "Total chunks emitted by the scanner",
		},
		[]string{"outcome"}, // unique | duplicate
	)

	// ChunkDedupRatio reports the dedup ratio over every chunk observed
	// since the process started.
	ChunkDedupRatio = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunk_dedup_ratio",
			Help:      "Duplicate chunks / total chunks observed by this process",
		},
	)

	// ChunkSizeBytes observes emitted chunk sizes.
	ChunkSizeBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_size_bytes",
			Help:      "Distribution of source chunk sizes",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 16),
		},
	)

	// SourceBytesTotal accumulates source bytes consumed.
	SourceBytesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_bytes_total",
			Help:      "Source bytes consumed by the chunker",
		},
	)

	// StoredBytesTotal accumulates bytes written to archives or stores.
	StoredBytesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written after dedup and compression",
		},
	)

	// StorageSavedRatio tracks savings vs raw source size (0.0 - 1.0).
	StorageSavedRatio = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_saved_ratio",
			Help:      "Current savings ratio ((source - stored) / source)",
		},
	)

	// ScanSecondsTotal accumulates time spent scanning for boundaries.
	ScanSecondsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_seconds_total",
			Help:      "Cumulative boundary-scan time",
		},
	)

	// ReadSecondsTotal accumulates time spent reading the source.
	ReadSecondsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_seconds_total",
			Help:      "Cumulative source-read time",
		},
	)

	// CompressDuration tracks per-run compression latency.
	CompressDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compress_duration_ms",
			Help:      "Duration of complete compression runs in milliseconds",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	// Up is a liveness gauge.
	Up = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "1 if the tool is running",
		},
	)
)

var (
	chunkTotalCount  atomic.Int64
	chunkDupCount    atomic.Int64
	totalSourceBytes atomic.Int64
	totalStoredBytes atomic.Int64
)

func init() {
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGoCollector())
	Up.Set(1)
}

// ObserveChunk records one emitted chunk and refreshes the dedup ratio.
func ObserveChunk(size int, duplicate bool) {
	outcome := "unique"
	count := chunkTotalCount.Add(1)
	dups := chunkDupCount.Load()
	if duplicate {
		outcome = "duplicate"
		dups = chunkDupCount.Add(1)
	}
	ChunkDedupRatio.Set(float64(dups) / float64(count))
	ChunkTotal.WithLabelValues(outcome).Inc()
	ChunkSizeBytes.Observe(float64(size))
}

// ObserveStorage updates byte counters and the savings ratio.
func ObserveStorage(sourceBytes, storedBytes int64) {
	if sourceBytes < 0 || storedBytes < 0 {
		return
	}
	src := totalSourceBytes.Add(sourceBytes)
	stored := totalStoredBytes.Add(storedBytes)
	SourceBytesTotal.Add(float64(sourceBytes))
	StoredBytesTotal.Add(float64(storedBytes))
	if src > 0 {
		StorageSavedRatio.Set(float64(src-stored) / float64(src))
	}
}

// ObserveScanTimes folds the chunker's timing counters into the run
// totals.
func ObserveScanTimes(scan, read time.Duration) {
	ScanSecondsTotal.Add(scan.Seconds())
	ReadSecondsTotal.Add(read.Seconds())
}

// ObserveCompressRun records the wall time of a full compression run.
func ObserveCompressRun(start time.Time) {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	CompressDuration.Observe(elapsed)
}

// Serve starts the /metrics HTTP endpoint on the provided address.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	srv := &http.Server{Addr: addr, Handler: mux}

	idleClosed := make(chan struct{})
	go func() {
		defer close(idleClosed)
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Printf("[Metrics] Prometheus endpoint listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-idleClosed
		return nil
	}

	return err
}
