package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT backend. BrokerURL is required.
type MQTTConfig struct {
	BrokerURL string // e.g. tcp://broker:1883
	ClientID  string // default "telcine"
	Username  string
	Password  string
	Topic     string // default "telcine/viewers"
	QoS       byte   // default 1

	ConnectTimeout time.Duration // default 10s
}

// MQTTNotifier publishes a JSON event per viewer to a topic.
type MQTTNotifier struct {
	config MQTTConfig
	client mqtt.Client
}

// NewMQTT validates the configuration and prepares the client. Connect
// must be called before the first Notify.
func NewMQTT(cfg MQTTConfig) (*MQTTNotifier, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("%w: mqtt needs a broker URL", ErrMisconfigured)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "telcine"
	}
	if cfg.Topic == "" {
		cfg.Topic = "telcine/viewers"
	}
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	options := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true)

	return &MQTTNotifier{
		config: cfg,
		client: mqtt.NewClient(options),
	}, nil
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

// Connect dials the broker.
func (n *MQTTNotifier) Connect() error {
	token := n.client.Connect()
	if !token.WaitTimeout(n.config.ConnectTimeout) {
		return fmt.Errorf("notify: mqtt connect timed out after %s", n.config.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: mqtt connect: %w", err)
	}
	return nil
}

// Notify publishes the event, waiting no longer than ctx allows.
func (n *MQTTNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	wait := n.config.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	token := n.client.Publish(n.config.Topic, n.config.QoS, false, payload)
	if !token.WaitTimeout(wait) {
		return errors.New("notify: mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker, letting in-flight work quiesce.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
