// SPDX-License-Identifier: Apache-2.0

package small

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts a SmallAlloc's introspection snapshot to the
// prometheus.Collector interface, so an allocator can be registered
// directly with a registry and scraped like any other component.
type Collector struct {
	alloc *SmallAlloc

	usedDesc      *prometheus.Desc
	totalDesc     *prometheus.Desc
	objCountDesc  *prometheus.Desc
	slabCountDesc *prometheus.Desc
}

// NewCollector wraps alloc for Prometheus registration. namespace/subsystem
// follow the usual prometheus.BuildFQName convention, e.g.
// NewCollector(a, "myapp", "small").
func NewCollector(alloc *SmallAlloc, namespace, subsystem string) *Collector {
	constLabels := []string{"class"}
	return &Collector{
		alloc: alloc,
		usedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "bytes_used"),
			"Bytes currently allocated in this size class.",
			constLabels, nil,
		),
		totalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "bytes_total"),
			"Bytes reserved (allocated + free) in this size class.",
			constLabels, nil,
		),
		objCountDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "objects_per_slab"),
			"Number of objects that fit in one slab of this size class.",
			constLabels, nil,
		),
		slabCountDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "slab_count"),
			"Number of slabs currently mapped into this size class.",
			constLabels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usedDesc
	ch <- c.totalDesc
	ch <- c.objCountDesc
	ch <- c.slabCountDesc
}

// Collect implements prometheus.Collector. It takes a fresh Stats()
// snapshot on every scrape, so counters reflect live allocator state
// rather than a cached copy.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.alloc.Stats()

	for _, cs := range snap.Classes {
		label := strconv.Itoa(cs.ObjSize)
		ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(cs.Stats.Used), label)
		ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(cs.Stats.Total), label)
		ch <- prometheus.MustNewConstMetric(c.objCountDesc, prometheus.GaugeValue, float64(cs.ObjCount), label)
		ch <- prometheus.MustNewConstMetric(c.slabCountDesc, prometheus.GaugeValue, float64(cs.SlabCount), label)
	}

	ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(snap.Total.Used), "total")
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(snap.Total.Total), "total")
}
