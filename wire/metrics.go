package wire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts codec activity per message type.
type Metrics struct {
	messagesEncoded *prometheus.CounterVec
	messagesDecoded *prometheus.CounterVec
	unknownFields   *prometheus.CounterVec
	wireMismatches  *prometheus.CounterVec
}

// NewMetrics registers the codec metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messagesEncoded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protosynth",
			Name:      "messages_encoded_total",
			Help:      "Total number of messages encoded.",
		}, []string{"message"}),
		messagesDecoded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protosynth",
			Name:      "messages_decoded_total",
			Help:      "Total number of messages decoded.",
		}, []string{"message"}),
		unknownFields: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protosynth",
			Name:      "unknown_fields_total",
			Help:      "Total number of unknown fields seen on decode, by outcome.",
		}, []string{"message", "outcome"}),
		wireMismatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protosynth",
			Name:      "wire_type_mismatches_total",
			Help:      "Total number of known fields received with an unexpected wire type.",
		}, []string{"message"}),
	}
}

func (m *Metrics) encoded(message string) {
	if m != nil {
		m.messagesEncoded.WithLabelValues(message).Inc()
	}
}

func (m *Metrics) decoded(message string) {
	if m != nil {
		m.messagesDecoded.WithLabelValues(message).Inc()
	}
}

func (m *Metrics) unknown(message, outcome string) {
	if m != nil {
		m.unknownFields.WithLabelValues(message, outcome).Inc()
	}
}

func (m *Metrics) mismatch(message string) {
	if m != nil {
		m.wireMismatches.WithLabelValues(message).Inc()
	}
}
