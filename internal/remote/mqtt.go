// Package remote mirrors machine state to an MQTT broker and delivers the
// broker's trigger document back to the machine.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"greencure/internal/config"
	"greencure/internal/logger"
	"greencure/internal/models"
)

var ErrNotConnected = errors.New("mqtt broker not connected")

const (
	qos = 1

	topicState         = "state"
	topicTelemetry     = "telemetry"
	topicNotifications = "notifications"
	topicTrigger       = "trigger"
	topicStatus        = "status"

	statusOnline  = "online"
	statusOffline = "offline"

	disconnectQuiesce = 250 // ms
)

// TriggerHandler is invoked for every accepted trigger message. It runs on
// the client's delivery goroutine.
type TriggerHandler func() error

// TriggerDocument is the payload accepted on <prefix>/trigger.
type TriggerDocument struct {
	ToggleHarvest bool `json:"toggle_harvest"`
}

// Client publishes the state document, telemetry and notifications, and
// subscribes to the trigger topic.
type Client struct {
	log    *logger.Logger
	broker mqtt.Client
	prefix string

	mu        sync.Mutex
	onTrigger TriggerHandler
}

// New wraps an existing broker client.
func New(log *logger.Logger, broker mqtt.Client, prefix string) *Client {
	return &Client{
		log:    log.Named("remote"),
		broker: broker,
		prefix: prefix,
	}
}

// Options builds the paho options for cfg. The client re-subscribes to the
// trigger topic and announces itself online every time it (re)connects.
func (c *Client) Options(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWill(c.topic(topicStatus), statusOffline, qos, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warnw("broker_connection_lost", "err", err)
	})
	return opts
}

// Dial connects to the broker described by cfg. A broker that is not
// reachable within cfg.ConnectTimeout is an error; once connected the
// client reconnects on its own.
func Dial(log *logger.Logger, cfg config.MQTTConfig) (*Client, error) {
	c := New(log, nil, cfg.TopicPrefix)
	c.broker = mqtt.NewClient(c.Options(cfg))

	token := c.broker.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		c.broker.Disconnect(0)
		return nil, fmt.Errorf("connect %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	c.log.Infow("broker_connected", "broker", cfg.Broker, "prefix", cfg.TopicPrefix)
	return c, nil
}

func (c *Client) topic(name string) string {
	return path.Join(c.prefix, name)
}

func (c *Client) onConnect(client mqtt.Client) {
	client.Publish(c.topic(topicStatus), qos, true, statusOnline)

	c.mu.Lock()
	subscribed := c.onTrigger != nil
	c.mu.Unlock()
	if !subscribed {
		return
	}
	token := client.Subscribe(c.topic(topicTrigger), qos, c.handleTrigger)
	go func() {
		if token.Wait() && token.Error() != nil {
			c.log.Errorw("trigger_resubscribe_failed", "err", token.Error())
		}
	}()
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) publish(ctx context.Context, name string, retained bool, v any) error {
	if !c.broker.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	topic := c.topic(name)
	if err := wait(ctx, c.broker.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.log.Debugw("published", "topic", topic, "bytes", len(payload))
	return nil
}

// PublishState replaces the retained state document.
func (c *Client) PublishState(ctx context.Context, doc models.StateDocument) error {
	return c.publish(ctx, topicState, true, doc)
}

// PublishTelemetry appends one telemetry record.
func (c *Client) PublishTelemetry(ctx context.Context, r models.SensorReading) error {
	return c.publish(ctx, topicTelemetry, false, r)
}

// Notify hands n to whatever delivers push notifications off the broker.
func (c *Client) Notify(ctx context.Context, n models.Notification) error {
	return c.publish(ctx, topicNotifications, false, n)
}

// SubscribeTrigger routes trigger messages to h until Close.
func (c *Client) SubscribeTrigger(ctx context.Context, h TriggerHandler) error {
	c.mu.Lock()
	c.onTrigger = h
	c.mu.Unlock()

	topic := c.topic(topicTrigger)
	if err := wait(ctx, c.broker.Subscribe(topic, qos, c.handleTrigger)); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Infow("trigger_subscribed", "topic", topic)
	return nil
}

// handleTrigger ignores retained messages: the broker replays them on every
// (re)connect and they must not toggle the machine again.
func (c *Client) handleTrigger(_ mqtt.Client, msg mqtt.Message) {
	if msg.Retained() {
		c.log.Debugw("trigger_retained_ignored", "topic", msg.Topic())
		return
	}
	var doc TriggerDocument
	if err := json.Unmarshal(msg.Payload(), &doc); err != nil {
		c.log.Warnw("trigger_malformed", "topic", msg.Topic(), "err", err)
		return
	}
	if !doc.ToggleHarvest {
		return
	}

	c.mu.Lock()
	h := c.onTrigger
	c.mu.Unlock()
	if h == nil {
		return
	}
	if err := h(); err != nil {
		c.log.Warnw("trigger_rejected", "err", err)
		return
	}
	c.log.Infow("trigger_applied", "topic", msg.Topic())
}

// Close marks the machine offline and disconnects.
func (c *Client) Close() {
	if !c.broker.IsConnected() {
		return
	}
	c.mu.Lock()
	subscribed := c.onTrigger != nil
	c.onTrigger = nil
	c.mu.Unlock()
	if subscribed {
		c.broker.Unsubscribe(c.topic(topicTrigger)).WaitTimeout(time.Second)
	}
	c.broker.Publish(c.topic(topicStatus), qos, true, statusOffline).WaitTimeout(time.Second)
	c.broker.Disconnect(disconnectQuiesce)
	c.log.Infow("broker_disconnected")
}
