package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/model"
)

// DefaultTopicPrefix is the root of published result topics.
const DefaultTopicPrefix = "reflex"

const resultTopic = "result"

// MQTTConfig addresses the broker.
type MQTTConfig struct {
	URL       string
	ClientID  string
	KeepAlive uint16
}

// Publisher is the subset of the MQTT connection the reporter uses.
type Publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

type resultMessage struct {
	SessionID  string    `json:"sessionId"`
	DeviceID   string    `json:"deviceId"`
	Round      uint32    `json:"round"`
	Difficulty uint8     `json:"difficulty"`
	WaitMs     uint32    `json:"waitMs"`
	VisualMs   uint32    `json:"visualMs"`
	TactileMs  uint32    `json:"tactileMs"`
	TotalMs    uint32    `json:"totalMs"`
	BestMs     uint32    `json:"bestMs"`
	RecordedAt time.Time `json:"recordedAt"`
}

// MQTTReporter publishes each result as JSON with QoS 1 on
// <prefix>/<device>/result.
type MQTTReporter struct {
	pub    Publisher
	topic  string
	source Source
}

// NewMQTTReporter returns a reporter publishing through pub.
func NewMQTTReporter(pub Publisher, prefix string, source Source) *MQTTReporter {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTReporter{
		pub:    pub,
		topic:  fmt.Sprintf("%s/%s/%s", prefix, source.DeviceID, resultTopic),
		source: source,
	}
}

// Topic returns the publish topic.
func (r *MQTTReporter) Topic() string {
	return r.topic
}

// ReportResult implements capability.Reporter.
func (r *MQTTReporter) ReportResult(ctx context.Context, rec model.TrialRecord, best model.Millis) error {
	res := r.source.Result(rec, best)
	payload, err := json.Marshal(resultMessage{
		SessionID:  res.SessionID,
		DeviceID:   res.DeviceID,
		Round:      res.RoundIndex,
		Difficulty: res.Difficulty,
		WaitMs:     res.WaitMs,
		VisualMs:   res.VisualMs,
		TactileMs:  res.TactileMs,
		TotalMs:    res.TotalMs,
		BestMs:     res.BestMs,
		RecordedAt: res.RecordedAt,
	})
	if err != nil {
		return err
	}
	_, err = r.pub.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   r.topic,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", r.topic, err)
	}
	return nil
}

// Connect opens an auto-reconnecting broker connection that lives until
// life is done, and waits on ctx for it to come up.
func Connect(ctx, life context.Context, cfg MQTTConfig, logger logging.Logger) (*autopaho.ConnectionManager, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt url: %w", err)
	}
	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 20
	}
	cliCfg := autopaho.ClientConfig{
		BrokerUrls:     []*url.URL{u},
		KeepAlive:      keepAlive,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) { logger.Infof("mqtt connection up (%s)", u.Host) },
		OnConnectError: func(err error) { logger.Warnf("error whilst attempting mqtt connection: %v", err) },
		ClientConfig: paho.ClientConfig{
			ClientID:      cfg.ClientID,
			OnClientError: func(err error) { logger.Warnf("mqtt client error: %v", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					logger.Warnf("mqtt server requested disconnect: %s", d.Properties.ReasonString)
				} else {
					logger.Warnf("mqtt server requested disconnect; reason code: %d", d.ReasonCode)
				}
			},
		},
	}
	cm, err := autopaho.NewConnection(life, cliCfg)
	if err != nil {
		return nil, err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, fmt.Errorf("await mqtt connection: %w", err)
	}
	return cm, nil
}
