// Package metrics exposes Prometheus metrics for policy resolution.
//
// A Collector owns a private registry, so several may coexist in one process
// (tests do this). Serve it with Handler.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synqronlabs/dmarcpolicy/dmarc"
	"github.com/synqronlabs/dmarcpolicy/dns"
	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
)

const namespace = "dmarcpolicy"

// Record levels, the "level" label of resolutions.
const (
	LevelExact          = "exact"
	LevelOrganizational = "organizational"
	LevelNone           = "none"
)

// Error kinds, the "kind" label of resolution errors.
const (
	KindSyntax   = "syntax"
	KindMultiple = "multiple"
	KindDNS      = "dns"
	KindOther    = "other"
)

// CacheStatser is implemented by dns.CachingResolver.
type CacheStatser interface {
	Stats() dns.CacheStats
}

// RuleSource is implemented by publicsuffix.Store.
type RuleSource interface {
	Rules() *publicsuffix.RuleSet
}

// Collector records resolution outcomes.
type Collector struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

// NewCollector returns a Collector with Go runtime and process metrics
// already registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Successful policy resolutions by verdict and where the record was found.",
		}, []string{"policy", "level"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_errors_total",
			Help:      "Failed policy resolutions by error kind.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.resolutions,
		c.errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe records the outcome of dmarc.Resolve.
func (c *Collector) Observe(res dmarc.ResolvedPolicy, err error) {
	if err != nil {
		c.errors.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	c.resolutions.WithLabelValues(string(res.Policy), Level(res)).Inc()
}

// Level classifies where the record behind res was found.
func Level(res dmarc.ResolvedPolicy) string {
	switch {
	case !res.Found:
		return LevelNone
	case res.Inherited():
		return LevelOrganizational
	}
	return LevelExact
}

// ErrorKind classifies a resolution error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, dmarc.ErrSyntax):
		return KindSyntax
	case errors.Is(err, dmarc.ErrMultipleRecords):
		return KindMultiple
	case errors.Is(err, dmarc.ErrDNS):
		return KindDNS
	}
	return KindOther
}

// WatchCache exports the hit and miss counts of a DNS cache.
func (c *Collector) WatchCache(cache CacheStatser) {
	c.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_cache_hits_total",
			Help:      "TXT lookups answered from the cache.",
		}, func() float64 { return float64(cache.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_cache_misses_total",
			Help:      "TXT lookups passed to the upstream resolver.",
		}, func() float64 { return float64(cache.Stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dns_cache_entries",
			Help:      "Names currently held in the DNS cache.",
		}, func() float64 { return float64(cache.Stats().Entries) }),
	)
}

// WatchRules exports the size of the current public suffix rule set.
func (c *Collector) WatchRules(src RuleSource) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "public_suffix_rules",
		Help:      "Rules in the public suffix list in use.",
	}, func() float64 { return float64(src.Rules().Len()) }))
}
