package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dbdb"

// 操作名 (label "op")
const (
	OpSplit  = "split"
	OpRead   = "read"
	OpAdd    = "add"
	OpCat    = "cat"
	OpVerify = "verify"
)

// Metrics 汇总引擎的计数器
// 每个 App 持有自己的 Registry，测试之间互不干扰
type Metrics struct {
	Registry *prometheus.Registry

	Blocks        *prometheus.CounterVec
	BlockBytes    *prometheus.CounterVec
	BlocksSkipped prometheus.Counter
	NodesWritten  prometheus.Counter
	IndexRecords  prometheus.Counter
	Duration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Number of blocks processed, by operation.",
		}, []string{"op"}),
		BlockBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_bytes_total",
			Help:      "Uncompressed block bytes processed, by operation.",
		}, []string{"op"}),
		BlocksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_skipped_total",
			Help:      "Blocks not rewritten because the object already existed.",
		}),
		NodesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_nodes_written_total",
			Help:      "Merkle tree nodes persisted.",
		}),
		IndexRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_records_total",
			Help:      "Lines appended to the name index.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.Registry.MustRegister(m.Blocks, m.BlockBytes, m.BlocksSkipped, m.NodesWritten, m.IndexRecords, m.Duration)
	return m
}

// ObserveSince 记录从 start 到现在的耗时
// nil Metrics 是合法的，所有方法都变成空操作
func (m *Metrics) ObserveSince(op string, start time.Time) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddBlock(op string, size int) {
	if m == nil {
		return
	}
	m.Blocks.WithLabelValues(op).Inc()
	m.BlockBytes.WithLabelValues(op).Add(float64(size))
}

func (m *Metrics) SkipBlock() {
	if m == nil {
		return
	}
	m.BlocksSkipped.Inc()
}

func (m *Metrics) NodeWritten() {
	if m == nil {
		return
	}
	m.NodesWritten.Inc()
}

func (m *Metrics) IndexRecorded() {
	if m == nil {
		return
	}
	m.IndexRecords.Inc()
}

// WriteTextfile 以 node_exporter textfile 格式导出
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
