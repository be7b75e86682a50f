package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/pilight-gateway/internal/audit"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// auditTimeout bounds a single rejection insert.
const auditTimeout = 5 * time.Second

// MQTTClient is the subset of *mqtt.Client the gateway uses.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishJSON(topic string, v any) error
	QoS() byte
}

// Metrics receives one data point per processed message.
// Satisfied by *influxdb.Client.
type Metrics interface {
	WriteValidation(direction, protocol, outcome string)
}

// AuditLog stores rejected payloads. Satisfied by *audit.SQLiteRepository.
type AuditLog interface {
	Create(ctx context.Context, r *audit.Rejection) error
}

// Logger is the logging interface the gateway needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Settings controls gateway behaviour.
type Settings struct {
	// Topics builds every topic the gateway reads and writes.
	Topics mqtt.Topics

	// SendAsList and ReceiveAsList choose the protocol_as_list form of
	// validated payloads per direction.
	SendAsList    bool
	ReceiveAsList bool

	// PublishRejections publishes a Report for every rejected message.
	PublishRejections bool

	// AuditRejections writes rejected messages to the audit log.
	AuditRejections bool
}

// Options holds dependencies for creating a gateway.
type Options struct {
	// Holder serves the current protocol registry. Required.
	Holder *protocol.Holder

	// MQTT is the broker connection. Required.
	MQTT MQTTClient

	Settings Settings

	// Metrics is optional.
	Metrics Metrics

	// Audit is optional. Rejections are only recorded when it is set and
	// Settings.AuditRejections is true.
	Audit AuditLog

	// Logger is optional.
	Logger Logger
}

// Report is published on the rejected topic for every refused message.
type Report struct {
	Direction  string               `json:"direction"`
	Protocol   string               `json:"protocol,omitempty"`
	Kind       audit.Kind           `json:"kind"`
	Error      string               `json:"error"`
	Violations []protocol.Violation `json:"violations,omitempty"`
	Payload    string               `json:"payload"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Result is the outcome of processing one message.
type Result struct {
	Direction string
	Protocol  string

	// Payload is the validated payload, nil when rejected.
	Payload protocol.Payload

	// Report describes the rejection, nil when accepted.
	Report *Report
}

// Accepted reports whether the message passed validation.
func (r *Result) Accepted() bool {
	return r.Report == nil
}

// Stats counts processed messages since start.
type Stats struct {
	SendAccepted     uint64 `json:"send_accepted"`
	SendRejected     uint64 `json:"send_rejected"`
	ReceiveAccepted  uint64 `json:"receive_accepted"`
	ReceiveRejected  uint64 `json:"receive_rejected"`
	PublishFailures  uint64 `json:"publish_failures"`
	AuditFailures    uint64 `json:"audit_failures"`
	SubscribedTopics int    `json:"subscribed_topics"`
}

type counters struct {
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// Gateway validates pilight payloads flowing over MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Gateway struct {
	holder   *protocol.Holder
	mqtt     MQTTClient
	settings Settings
	metrics  Metrics
	audit    AuditLog
	logger   Logger
	now      func() time.Time

	send            counters
	receive         counters
	publishFailures atomic.Uint64
	auditFailures   atomic.Uint64

	subscribed []string
	subMu      sync.Mutex

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// New creates a gateway. Call Start to subscribe.
func New(opts Options) (*Gateway, error) {
	if opts.Holder == nil {
		return nil, fmt.Errorf("protocol holder is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		holder:    opts.Holder,
		mqtt:      opts.MQTT,
		settings:  opts.Settings,
		metrics:   opts.Metrics,
		audit:     opts.Audit,
		logger:    opts.Logger,
		now:       time.Now,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start subscribes to the send and receive topics.
func (g *Gateway) Start() error {
	for _, direction := range []string{mqtt.DirectionSend, mqtt.DirectionReceive} {
		topic := g.settings.Topics.Inbound(direction)
		if err := g.mqtt.Subscribe(topic, g.mqtt.QoS(), g.handlerFor(direction)); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}

		g.subMu.Lock()
		g.subscribed = append(g.subscribed, topic)
		g.subMu.Unlock()

		g.logInfo("subscribed", "topic", topic, "direction", direction)
	}
	return nil
}

// Stop unsubscribes and cancels in-flight audit writes.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.subMu.Lock()
		topics := g.subscribed
		g.subscribed = nil
		g.subMu.Unlock()

		for _, topic := range topics {
			if err := g.mqtt.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				g.logWarn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
		g.ctxCancel()
		g.logInfo("gateway stopped")
	})
}

func (g *Gateway) handlerFor(direction string) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		_, err := g.Process(g.ctx, direction, payload)
		return err
	}
}

// Process validates one raw message and publishes the outcome.
//
// The returned error covers publishing only; a rejected message is a
// successful Result with a Report.
func (g *Gateway) Process(ctx context.Context, direction string, raw []byte) (*Result, error) {
	var c *counters
	var asList bool
	switch direction {
	case mqtt.DirectionSend:
		c, asList = &g.send, g.settings.SendAsList
	case mqtt.DirectionReceive:
		c, asList = &g.receive, g.settings.ReceiveAsList
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	res := &Result{Direction: direction}

	payload, err := Decode(raw)
	if err == nil {
		res.Protocol, _ = protocol.Discriminator(payload)
		res.Payload, err = g.holder.Validate(payload, asList)
	}

	if err != nil {
		c.rejected.Add(1)
		res.Payload = nil
		res.Report = g.report(res, raw, err)
		g.logDebug("payload rejected", "direction", direction, "protocol", res.Protocol, "kind", res.Report.Kind, "error", err)
		g.recordMetric(direction, res.Protocol, string(res.Report.Kind))
		g.recordAudit(ctx, res.Report)

		if !g.settings.PublishRejections {
			return res, nil
		}
		return res, g.publish(g.settings.Topics.Rejected(direction), res.Report)
	}

	c.accepted.Add(1)
	g.recordMetric(direction, res.Protocol, influxdb.OutcomeAccepted)
	return res, g.publish(g.settings.Topics.Validated(direction, res.Protocol), res.Payload)
}

// Stats returns a snapshot of the message counters.
func (g *Gateway) Stats() Stats {
	g.subMu.Lock()
	subscribed := len(g.subscribed)
	g.subMu.Unlock()

	return Stats{
		SendAccepted:     g.send.accepted.Load(),
		SendRejected:     g.send.rejected.Load(),
		ReceiveAccepted:  g.receive.accepted.Load(),
		ReceiveRejected:  g.receive.rejected.Load(),
		PublishFailures:  g.publishFailures.Load(),
		AuditFailures:    g.auditFailures.Load(),
		SubscribedTopics: subscribed,
	}
}

// Decode parses a raw message into a payload, keeping the daemon's number handling
// (every number becomes float64).
func Decode(raw []byte) (protocol.Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedPayload
	}
	var payload protocol.Payload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return payload, nil
}

func (g *Gateway) report(res *Result, raw []byte, err error) *Report {
	rep := &Report{
		Direction: res.Direction,
		Protocol:  res.Protocol,
		Kind:      audit.KindOf(err),
		Error:     err.Error(),
		Payload:   string(raw),
		Timestamp: g.now().UTC(),
	}
	var schemaErr *protocol.SchemaError
	if errors.As(err, &schemaErr) {
		rep.Violations = schemaErr.Violations
	}
	return rep
}

func (g *Gateway) publish(topic string, v any) error {
	if err := g.mqtt.PublishJSON(topic, v); err != nil {
		g.publishFailures.Add(1)
		g.logError("publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (g *Gateway) recordMetric(direction, protocolName, outcome string) {
	if g.metrics != nil {
		g.metrics.WriteValidation(direction, protocolName, outcome)
	}
}

func (g *Gateway) recordAudit(ctx context.Context, rep *Report) {
	if g.audit == nil || !g.settings.AuditRejections {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()

	err := g.audit.Create(ctx, &audit.Rejection{
		Direction: rep.Direction,
		Protocol:  rep.Protocol,
		Kind:      rep.Kind,
		Detail:    rep.Error,
		Payload:   rep.Payload,
		CreatedAt: rep.Timestamp,
	})
	if err != nil {
		g.auditFailures.Add(1)
		g.logError("recording rejection failed", "error", err)
	}
}

func (g *Gateway) logDebug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

func (g *Gateway) logInfo(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Info(msg, args...)
	}
}

func (g *Gateway) logWarn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}

func (g *Gateway) logError(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Error(msg, args...)
	}
}
