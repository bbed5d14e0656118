package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/config"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the part of the paho client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTSink publishes alerts as JSON under <topic>/<tenant>/<kind> so building
// systems such as front-desk displays can subscribe per property.
type MQTTSink struct {
	client Publisher
	topic  string
	qos    byte
}

func NewMQTTSink(client Publisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Topic(alert Alert) string {
	return fmt.Sprintf("%s/%s/%s", s.topic, alert.TenantID, alert.Kind)
}

func (s *MQTTSink) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(struct {
		Alert
		Text   string    `json:"text"`
		SentAt time.Time `json:"sent_at"`
	}{Alert: alert, Text: alert.Text(), SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	token := s.client.Publish(s.Topic(alert), s.qos, false, payload)
	wait := publishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		wait = time.Until(deadline)
	}
	if !token.WaitTimeout(wait) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// ConnectMQTT opens a client with auto-reconnect and waits for the first connection.
func ConnectMQTT(cfg config.MQTTAlertConfig) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return client, nil
}
