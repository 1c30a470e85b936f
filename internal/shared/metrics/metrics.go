package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	cardsProcessedTotal   atomic.Uint64
	cardsFailedTotal      atomic.Uint64
	recordsExtractedTotal atomic.Uint64

	classifiedCard         atomic.Uint64
	classifiedNotCard      atomic.Uint64
	classifiedUnrecognized atomic.Uint64

	runDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncCardsProcessed counts an image that entered the pipeline.
func IncCardsProcessed() {
	cardsProcessedTotal.Add(1)
}

// IncCardsFailed counts an image dropped because of an error.
func IncCardsFailed() {
	cardsFailedTotal.Add(1)
}

// AddRecordsExtracted counts normalized records appended to a result set.
func AddRecordsExtracted(n int) {
	if n <= 0 {
		return
	}
	recordsExtractedTotal.Add(uint64(n))
}

// IncCardsClassified counts a classification outcome: card, not_card or unrecognized.
func IncCardsClassified(result string) {
	switch result {
	case "card":
		classifiedCard.Add(1)
	case "not_card":
		classifiedNotCard.Add(1)
	default:
		classifiedUnrecognized.Add(1)
	}
}

// ObserveRunDurationMs records an extraction run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "cards_processed_total", "Total images run through the card pipeline", cardsProcessedTotal.Load())
	fmt.Fprintf(&buf, "# HELP cards_classified_total Classification outcomes by result\n")
	fmt.Fprintf(&buf, "# TYPE cards_classified_total counter\n")
	fmt.Fprintf(&buf, "cards_classified_total{result=\"card\"} %d\n", classifiedCard.Load())
	fmt.Fprintf(&buf, "cards_classified_total{result=\"not_card\"} %d\n", classifiedNotCard.Load())
	fmt.Fprintf(&buf, "cards_classified_total{result=\"unrecognized\"} %d\n", classifiedUnrecognized.Load())
	writeCounter(&buf, "cards_failed_total", "Total images dropped because of an error", cardsFailedTotal.Load())
	writeCounter(&buf, "records_extracted_total", "Total contact records extracted", recordsExtractedTotal.Load())
	writeHistogram(&buf, "extraction_run_duration_ms", "Extraction run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
