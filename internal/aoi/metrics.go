package aoi

import "github.com/prometheus/client_golang/prometheus"

// Metrics Prometheus-метрики движка согласования.
// Все методы безопасны для nil-получателя.
type Metrics struct {
	containers     *prometheus.GaugeVec
	messages       *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	droppedCreates prometheus.Counter
	admissions     prometheus.Counter
	destructions   prometheus.Counter
	deferred       prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Тесты передают prometheus.NewRegistry(), чтобы не конфликтовать с глобальным регистром.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		containers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aoi",
			Name:      "container_entities",
			Help:      "Число записей в каждом контейнере движка.",
		}, []string{"container"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "messages_total",
			Help:      "Обработанные сообщения по видам.",
		}, []string{"kind"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "protocol_anomalies_total",
			Help:      "Аномалии протокола (повторный enter, leave без enter и т.п.).",
		}, []string{"kind"}),
		droppedCreates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "dropped_creates_total",
			Help:      "Create-сообщения, отброшенные из-за неизвестного типа.",
		}),
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "admissions_total",
			Help:      "Переносы сущностей в entered.",
		}),
		destructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "destructions_total",
			Help:      "Уничтоженные handle сущностей.",
		}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aoi",
			Name:      "deferred_calls_total",
			Help:      "Повторные входы в движок, отложенные до следующего тика.",
		}),
	}
	reg.MustRegister(m.containers, m.messages, m.anomalies, m.droppedCreates, m.admissions, m.destructions, m.deferred)
	return m
}

func (m *Metrics) observeStats(s Stats) {
	if m == nil {
		return
	}
	m.containers.WithLabelValues(ContainerEntered.String()).Set(float64(s.Entered))
	m.containers.WithLabelValues(ContainerCached.String()).Set(float64(s.Cached))
	m.containers.WithLabelValues(ContainerPrerequisites.String()).Set(float64(s.Prerequisites))
	m.containers.WithLabelValues(ContainerVehicle.String()).Set(float64(s.Vehicle))
	m.containers.WithLabelValues("unknown").Set(float64(s.Unknown))
	m.containers.WithLabelValues("pending").Set(float64(s.Pending))
}

func (m *Metrics) message(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) anomaly(kind string) {
	if m != nil {
		m.anomalies.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) droppedCreate() {
	if m != nil {
		m.droppedCreates.Inc()
	}
}

func (m *Metrics) admitted() {
	if m != nil {
		m.admissions.Inc()
	}
}

func (m *Metrics) destroyed() {
	if m != nil {
		m.destructions.Inc()
	}
}

func (m *Metrics) deferredCall() {
	if m != nil {
		m.deferred.Inc()
	}
}
