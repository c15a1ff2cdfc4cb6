package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "bills_pending",
			Help: "Bills awaiting payment",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM bills WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "bills_overdue",
			Help: "Pending bills past their due date",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM bills WHERE status = 'pending' AND due_date < CURRENT_DATE")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "obligations_due",
			Help: "Active auto-generating obligations whose next due date has passed",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM obligation_configs WHERE status = 'active' AND auto_generate AND next_due_date <= CURRENT_DATE")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
