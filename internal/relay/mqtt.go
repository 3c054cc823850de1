package relay

import (
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// JSONPublisher is the part of the MQTT client the relay uses.
// *mqtt.Client satisfies it.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTT publishes verdicts to biometric/<station>/quality and recovery
// attempts to biometric/<station>/recovery.
type MQTT struct {
	frameTracker

	client    JSONPublisher
	stationID string
	logger    Logger

	qualityTopic  string
	recoveryTopic string
}

var (
	_ fanout.Listener  = (*MQTT)(nil)
	_ capture.Observer = (*MQTT)(nil)
)

// NewMQTT creates an MQTT relay. logger may be nil.
func NewMQTT(client JSONPublisher, stationID string, logger Logger) *MQTT {
	return &MQTT{
		client:        client,
		stationID:     stationID,
		logger:        orNoop(logger),
		qualityTopic:  mqtt.Topics{}.Quality(stationID),
		recoveryTopic: mqtt.Topics{}.Recovery(stationID),
	}
}

// OnQuality publishes the verdict. Publish errors are logged and dropped.
func (m *MQTT) OnQuality(v quality.Verdict, label string) {
	msg := NewQualityMessage(m.stationID, m.last, v, label)
	if err := m.client.PublishJSON(m.qualityTopic, msg, false); err != nil {
		m.logger.Warn("failed to publish quality verdict", "seq", msg.Seq, "error", err)
	}
}

// ObserveFailure implements capture.Observer. Single failures are not
// published; the health reporter carries the running count.
func (m *MQTT) ObserveFailure(int, error) {}

// ObserveRecovery publishes the recovery attempt off the capture worker.
func (m *MQTT) ObserveRecovery(r capture.Recovery) {
	msg := NewRecoveryMessage(m.stationID, r)
	go func() {
		if err := m.client.PublishJSON(m.recoveryTopic, msg, false); err != nil {
			m.logger.Warn("failed to publish recovery event", "failures", msg.Failures, "error", err)
		}
	}()
}
