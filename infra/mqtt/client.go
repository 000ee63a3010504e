package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/ucmilp/core/extract"
	corelogger "github.com/kilianp07/ucmilp/core/logger"
	coremon "github.com/kilianp07/ucmilp/core/monitoring"
	"github.com/kilianp07/ucmilp/infra/logger"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "ucmilp"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	AuthMethod  string      `json:"auth_method"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// Validate checks the broker address and QoS.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ScheduleMessage is the payload published for one generator.
type ScheduleMessage struct {
	MessageID  string    `json:"message_id"`
	RunID      string    `json:"run_id"`
	Case       string    `json:"case"`
	Generator  string    `json:"generator"`
	Status     string    `json:"status"`
	Suboptimal bool      `json:"suboptimal"`
	Hours      []int     `json:"hours"`
	Commitment []int     `json:"commitment"`
	OutputMW   []float64 `json:"output_mw"`
	Timestamp  int64     `json:"timestamp"`
}

// SchedulePublisher publishes solved schedules per generator.
type SchedulePublisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	logger     corelogger.Logger
}

// NewSchedulePublisher connects to the broker.
func NewSchedulePublisher(cfg Config) (*SchedulePublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ucmilp-" + uuid.NewString()[:8]
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &SchedulePublisher{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Topic returns the schedule topic of a generator.
func (p *SchedulePublisher) Topic(generator string) string {
	return p.prefix + "/" + generator + "/schedule"
}

// ScheduleMessages splits res into one message per generator.
func ScheduleMessages(runID, caseName string, res *extract.Results) []ScheduleMessage {
	now := time.Now().UnixMilli()
	out := make([]ScheduleMessage, 0, len(res.Generators))
	for _, g := range res.Generators {
		u := res.Commitment.Column(g)
		commit := make([]int, len(u))
		for i, v := range u {
			commit[i] = int(v)
		}
		out = append(out, ScheduleMessage{
			MessageID:  uuid.NewString(),
			RunID:      runID,
			Case:       caseName,
			Generator:  g,
			Status:     res.Status.String(),
			Suboptimal: res.Suboptimal,
			Hours:      res.Hours,
			Commitment: commit,
			OutputMW:   res.Dispatch.Column(g),
			Timestamp:  now,
		})
	}
	return out
}

// PublishSchedule publishes the schedule of every generator in res. A
// generator whose publish fails after all retries is reported to the
// monitor; the first such error is returned once all generators were
// attempted.
func (p *SchedulePublisher) PublishSchedule(runID, caseName string, res *extract.Results) error {
	var firstErr error
	for _, msg := range ScheduleMessages(runID, caseName, res) {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := p.Topic(msg.Generator)
		if err := p.publish(topic, payload); err != nil {
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "generator": msg.Generator, "run_id": runID})
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s: %w", topic, err)
			}
		}
	}
	return firstErr
}

func (p *SchedulePublisher) publish(topic string, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published schedule to %s", topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *SchedulePublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
