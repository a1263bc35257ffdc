// Package metrics is a small dependency-free metrics registry with
// Prometheus text exposition. Counters and gauges are atomics; histograms
// keep cumulative bucket counts plus sum/count.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing value.
type Counter struct {
	name string
	help string
	v    int64
}

func (c *Counter) Inc()            { atomic.AddInt64(&c.v, 1) }
func (c *Counter) Add(delta int64) { atomic.AddInt64(&c.v, delta) }
func (c *Counter) Get() int64      { return atomic.LoadInt64(&c.v) }

// Gauge is a value that can move both ways. Stored as float64 bits.
type Gauge struct {
	name string
	help string
	bits uint64
}

func (g *Gauge) Set(v float64) { atomic.StoreUint64(&g.bits, math.Float64bits(v)) }
func (g *Gauge) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		nv := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&g.bits, old, math.Float64bits(nv)) {
			return
		}
	}
}
func (g *Gauge) Get() float64 { return math.Float64frombits(atomic.LoadUint64(&g.bits)) }

// Histogram counts observations into fixed upper-bound buckets. The last
// bucket is always +Inf.
type Histogram struct {
	name    string
	help    string
	bounds  []float64
	counts  []uint64
	sumBits uint64
	count   uint64
}

func (h *Histogram) Observe(v float64) {
	idx := len(h.bounds) - 1
	for i, ub := range h.bounds {
		if v <= ub {
			idx = i
			break
		}
	}
	atomic.AddUint64(&h.counts[idx], 1)
	atomic.AddUint64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sumBits)
		nv := math.Float64frombits(old) + v
		if atomic.CompareAndSwapUint64(&h.sumBits, old, math.Float64bits(nv)) {
			return
		}
	}
}

// Time runs fn and records its wall duration in seconds.
func (h *Histogram) Time(fn func()) {
	start := time.Now()
	fn()
	h.Observe(time.Since(start).Seconds())
}

// Registry holds named metrics. Register-once semantics: asking for an
// existing name returns the existing metric.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: sanitize(name), help: help}
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: sanitize(name), help: help}
	r.gauges[name] = g
	return g
}

func (r *Registry) Histogram(name, help string, bounds []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	bs := append([]float64{}, bounds...)
	sort.Float64s(bs)
	if len(bs) == 0 || !math.IsInf(bs[len(bs)-1], 1) {
		bs = append(bs, math.Inf(1))
	}
	h := &Histogram{name: sanitize(name), help: help, bounds: bs, counts: make([]uint64, len(bs))}
	r.histograms[name] = h
	return h
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		r.mu.RLock()
		counters := snapshot(r.counters)
		gauges := snapshot(r.gauges)
		histograms := snapshot(r.histograms)
		r.mu.RUnlock()

		for _, c := range counters {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, oneLine(c.help), c.name, c.name, c.Get())
		}
		for _, g := range gauges {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", g.name, oneLine(g.help), g.name, g.name, g.Get())
		}
		for _, h := range histograms {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, oneLine(h.help), h.name)
			var cum uint64
			for i, ub := range h.bounds {
				cum += atomic.LoadUint64(&h.counts[i])
				label := fmt.Sprintf("%g", ub)
				if math.IsInf(ub, 1) {
					label = "+Inf"
				}
				fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, label, cum)
			}
			fmt.Fprintf(w, "%s_sum %g\n", h.name, math.Float64frombits(atomic.LoadUint64(&h.sumBits)))
			fmt.Fprintf(w, "%s_count %d\n", h.name, atomic.LoadUint64(&h.count))
		}
	})
}

// Handler exposes the Default registry.
func Handler() http.Handler { return Default.Handler() }

type named interface{ metricName() string }

func (c *Counter) metricName() string   { return c.name }
func (g *Gauge) metricName() string     { return g.name }
func (h *Histogram) metricName() string { return h.name }

func snapshot[T named](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].metricName() < out[j].metricName() })
	return out
}

func sanitize(s string) string {
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(s)
}

func oneLine(s string) string { return strings.ReplaceAll(s, "\n", " ") }
