// Package mqtt publishes simulation readings onto the facis/ topic
// hierarchy over an MQTT broker connection, with reconnect backoff
// confined entirely to this adapter — the generator kernel never knows
// the broker exists.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// QoS mirrors the MQTT quality-of-service levels used by the topic table.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 60 * time.Second
)

// Publisher wraps a paho MQTT client and exposes one method per topic
// family in the contract, each carrying its own fixed QoS/retained flag.
type Publisher struct {
	client paho.Client
	logger *log.Logger
}

// NewPublisher connects to brokerURL (e.g. "tcp://localhost:1883") and
// returns a ready Publisher. Connection loss triggers paho's automatic
// reconnect, whose wait starts at one second and doubles on each failure
// up to maxBackoff; a failed initial connect is retried every minBackoff.
// The adapter runs no reconnect loop of its own.
func NewPublisher(brokerURL, clientID string, logger *log.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(minBackoff).
		SetMaxReconnectInterval(maxBackoff)

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", brokerURL, token.Error())
	}
	return &Publisher{client: client, logger: logger}, nil
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func (p *Publisher) publish(topic string, qos QoS, retained bool, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqtt: marshal payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, byte(qos), retained, body)
	if token.Wait() && token.Error() != nil {
		if p.logger != nil {
			p.logger.Printf("mqtt: publish to %s failed: %v", topic, token.Error())
		}
		return fmt.Errorf("mqtt: publish to %s: %w", topic, token.Error())
	}
	return nil
}

// PublishMeter sends a meter reading to facis/energy/meter/{id}.
func (p *Publisher) PublishMeter(meterID string, payload any) error {
	return p.publish(fmt.Sprintf("facis/energy/meter/%s", meterID), AtLeastOnce, false, payload)
}

// PublishPV sends a PV reading to facis/energy/pv/{id}.
func (p *Publisher) PublishPV(systemID string, payload any) error {
	return p.publish(fmt.Sprintf("facis/energy/pv/%s", systemID), AtLeastOnce, false, payload)
}

// PublishWeather sends the current weather reading, retained so late
// subscribers immediately see the last value.
func (p *Publisher) PublishWeather(payload any) error {
	return p.publish("facis/weather/current", AtMostOnce, true, payload)
}

// PublishSpotPrice sends the current price reading, retained.
func (p *Publisher) PublishSpotPrice(payload any) error {
	return p.publish("facis/prices/spot", AtLeastOnce, true, payload)
}

// ForecastPayload is the envelope published on facis/prices/forecast.
type ForecastPayload struct {
	GeneratedAt  time.Time `json:"generated_at"`
	HorizonHours int       `json:"horizon_hours"`
	Prices       any       `json:"prices"`
}

// PublishPriceForecast sends a forecast envelope, retained.
func (p *Publisher) PublishPriceForecast(payload ForecastPayload) error {
	return p.publish("facis/prices/forecast", AtLeastOnce, true, payload)
}

// PublishLoad sends a consumer-load reading to facis/loads/{device_type}.
func (p *Publisher) PublishLoad(deviceType string, payload any) error {
	return p.publish(fmt.Sprintf("facis/loads/%s", deviceType), AtMostOnce, false, payload)
}

// AlertEnvelope is the payload published on facis/events/alerts.
type AlertEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	EntityID  string    `json:"entity_id"`
	Message   string    `json:"message"`
}

// PublishAlert sends an alert envelope at QoS 2 — alerts must never be
// duplicated or dropped.
func (p *Publisher) PublishAlert(alert AlertEnvelope) error {
	return p.publish("facis/events/alerts", ExactlyOnce, false, alert)
}

// PublishSimulationStatus sends the engine snapshot, retained.
func (p *Publisher) PublishSimulationStatus(payload any) error {
	return p.publish("facis/simulation/status", AtLeastOnce, true, payload)
}
