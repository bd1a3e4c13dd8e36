package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 購入結果のラベル値
const (
	PurchaseSuccess      = "success"
	PurchaseIdempotent   = "idempotent"
	PurchaseIneligible   = "ineligible"
	PurchaseMintFailed   = "mint_failed"
	PurchaseInconsistent = "commit_inconsistency"
	PurchaseLockFailed   = "lock_failed"
	PurchaseError        = "error"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 購入の総数（status: success, idempotent, ineligible, mint_failed, commit_inconsistency, lock_failed, error）
	PurchasesTotal *prometheus.CounterVec

	// オンチェーン呼び出しの時間（operation: create_event/mint_ticket, status: success/failed）
	ChainCallDuration *prometheus.HistogramVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 未解消の照合エントリ数（kind）
	ReconciliationOpen *prometheus.GaugeVec

	// 照合エントリの追加数（kind）
	ReconciliationEnqueued *prometheus.CounterVec

	// 不参加ペナルティの適用数
	ReputationPenaltiesTotal prometheus.Counter

	// 再販出品の操作数（operation: list/cancel, status）
	ResaleOperationsTotal *prometheus.CounterVec
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		PurchasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_purchases_total",
				Help: "Total number of ticket purchase attempts by outcome",
			},
			[]string{"status"},
		),
		ChainCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_call_duration_seconds",
				Help:    "Time spent waiting for on-chain transactions",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"operation", "status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ReconciliationOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reconciliation_open_entries",
				Help: "Current number of unresolved reconciliation entries",
			},
			[]string{"kind"},
		),
		ReconciliationEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciliation_enqueued_total",
				Help: "Total number of reconciliation entries enqueued",
			},
			[]string{"kind"},
		),
		ReputationPenaltiesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reputation_penalties_total",
				Help: "Total number of missed-event reputation penalties applied",
			},
		),
		ResaleOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resale_operations_total",
				Help: "Total number of resale listing operations",
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PurchasesTotal,
		m.ChainCallDuration,
		m.DistributedLockDuration,
		m.ReconciliationOpen,
		m.ReconciliationEnqueued,
		m.ReputationPenaltiesTotal,
		m.ResaleOperationsTotal,
	)

	return m
}
