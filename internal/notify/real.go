package notify

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"hydroponics_controller/internal/logger"
)

// BrokerConfig describes how to reach the MQTT broker.
type BrokerConfig struct {
	Broker      string // e.g. "tcp://192.168.1.10:1883"
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	ConnectTimeout time.Duration
	MaxRetries     uint64
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client  paho.Client
	timeout time.Duration
}

// clientOptions leaves paho's own connect retry off: the first connection
// is retried by NewRealPublisher, later drops by auto-reconnect.
func clientOptions(cfg BrokerConfig, will []byte) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetBinaryWill(SystemTopic(cfg.TopicPrefix), will, 1, true)
}

// NewRealPublisher connects to the broker, retrying with exponential
// backoff. The broker holds a retained OFFLINE message as last will.
func NewRealPublisher(cfg BrokerConfig, log *logger.Logger) (*RealPublisher, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "hydroponics-controller"
	}

	will, err := FormatSystem(SystemOffline, "connection lost", time.Now())
	if err != nil {
		return nil, fmt.Errorf("format last will: %w", err)
	}

	client := paho.NewClient(clientOptions(cfg, will))

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	err = backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(cfg.ConnectTimeout) {
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			if log != nil {
				log.Warnw("mqtt_connect_failed", "broker", cfg.Broker, "error", err)
			}
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, cfg.MaxRetries))
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	return &RealPublisher{client: client, timeout: 5 * time.Second}, nil
}

func (p *RealPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
