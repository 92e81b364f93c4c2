package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ScanTotal counts code scans by outcome (added, not_found, error).
	ScanTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// SaleGrandTotal records the grand total of completed sales.
	SaleGrandTotal prometheus.Histogram
	// OpenSessions reports the number of live register sessions.
	OpenSessions prometheus.Gauge
	// SalesRecordedTotal counts ledger writes by mode and outcome.
	SalesRecordedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ScanTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_scan_total",
			Help:      "Count of product code scans by outcome.",
		}, []string{"result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		SaleGrandTotal = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pos_sale_grand_total",
			Help:      "Grand total of completed sales in currency units.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		})
		OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pos_open_sessions",
			Help:      "Number of open register sessions.",
		})
		SalesRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_sales_recorded_total",
			Help:      "Count of sales ledger writes by mode and outcome.",
		}, []string{"mode", "result"})

		ScanTotal = registerOrReuse(reg, ScanTotal)
		CheckoutTotal = registerOrReuse(reg, CheckoutTotal)
		SaleGrandTotal = registerOrReuse(reg, SaleGrandTotal)
		OpenSessions = registerOrReuse(reg, OpenSessions)
		SalesRecordedTotal = registerOrReuse(reg, SalesRecordedTotal)
	})
}

// IncScan records a scan outcome when domain metrics are registered.
func IncScan(result string) {
	if ScanTotal != nil {
		ScanTotal.WithLabelValues(result).Inc()
	}
}

// IncCheckout records a checkout outcome when domain metrics are registered.
func IncCheckout(result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// ObserveSale records a completed sale's grand total.
func ObserveSale(grandTotal float64) {
	if SaleGrandTotal != nil {
		SaleGrandTotal.Observe(grandTotal)
	}
}

// SetOpenSessions publishes the open session count.
func SetOpenSessions(n int) {
	if OpenSessions != nil {
		OpenSessions.Set(float64(n))
	}
}

// IncSalesRecorded records a ledger write outcome.
func IncSalesRecorded(mode, result string) {
	if SalesRecordedTotal != nil {
		SalesRecordedTotal.WithLabelValues(mode, result).Inc()
	}
}
