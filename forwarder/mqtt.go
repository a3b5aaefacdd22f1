package forwarder

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/jd3nn1s/forzajuicer/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	mqttPublishTimeout = 2 * time.Second
	mqttQuiesceMS      = 250
)

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTForwarder publishes each record as retained JSON so late subscribers
// get the latest value straight away.
type MQTTForwarder struct {
	Config config.MQTT

	client mqttPublisher
	queue  *queue
}

func NewMQTTForwarder(cfg config.MQTT) (*MQTTForwarder, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "forzajuicer-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "unable to connect to mqtt broker %s", cfg.Broker)
	}
	log.WithField("broker", cfg.Broker).
		WithField("clientID", cfg.ClientID).
		Info("connected to mqtt broker")

	return newMQTTForwarder(cfg, client), nil
}

func newMQTTForwarder(cfg config.MQTT, client mqttPublisher) *MQTTForwarder {
	return &MQTTForwarder{
		Config: cfg,
		client: client,
		queue:  newQueue("mqtt", config.Interval(cfg.IntervalMS)),
	}
}

func (m *MQTTForwarder) Close() error {
	if c, ok := m.client.(mqtt.Client); ok {
		c.Disconnect(mqttQuiesceMS)
	}
	return nil
}

func (m *MQTTForwarder) Forward(newTelemetry *juicer.Telemetry, prevTelemetry *juicer.Telemetry) error {
	m.queue.offer(newTelemetry)
	return nil
}

func (m *MQTTForwarder) Start(ctx context.Context) error {
	return m.queue.run(ctx, m.publish)
}

func (m *MQTTForwarder) publish(t *juicer.Telemetry) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "unable to marshal telemetry")
	}
	token := m.client.Publish(m.Config.Topic, m.Config.QoS, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("timed out publishing to %s", m.Config.Topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "unable to publish to %s", m.Config.Topic)
	}
	return nil
}
