package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics counts storefront browse outcomes and cache usage.
type CatalogMetrics struct {
	superseded prometheus.Counter
	cache      *prometheus.CounterVec
}

func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	superseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_browse_superseded_total",
		Help: "Browse responses discarded because a newer request from the same client started.",
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(superseded, cache)
	return &CatalogMetrics{superseded: superseded, cache: cache}
}

func (m *CatalogMetrics) IncSuperseded() {
	if m == nil || m.superseded == nil {
		return
	}
	m.superseded.Inc()
}

// ObserveCache records a hit or miss.
func (m *CatalogMetrics) ObserveCache(hit bool) {
	if m == nil || m.cache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
