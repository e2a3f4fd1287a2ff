// Package ingest subscribes to an MQTT topic and stores the observations
// published there.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

const (
	qos            = byte(1) // at least once
	storeTimeout   = 5 * time.Second
	subscribeWait  = 5 * time.Second
	connectPoll    = 200 * time.Millisecond
	disconnectWait = 250 // milliseconds
)

// ErrStopped is returned by Connect after Disconnect.
var ErrStopped = errors.New("subscriber stopped")

// ObservationSaver persists a validated observation.
type ObservationSaver interface {
	SaveObservation(ctx context.Context, o models.Observation) (models.Observation, error)
}

// Options configures a Subscriber.
type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

// Subscriber stores every valid observation published on Topic.
type Subscriber struct {
	client mqtt.Client
	opts   Options
	store  ObservationSaver
	logger *zap.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber creates a subscriber. It does not connect until Connect is called.
func NewSubscriber(opts Options, store ObservationSaver, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Subscriber{
		opts:   opts,
		store:  store,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	// A clean session drops subscriptions, so subscribe on every (re)connect.
	co.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", zap.String("broker", opts.Broker), zap.Int("port", opts.Port))
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", zap.String("topic", opts.Topic), zap.Error(err))
		}
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	s.client = mqtt.NewClient(co)
	return s
}

// Connect starts the connection and waits until it is established, ctx is
// done, or Disconnect is called.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}
	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()
	for !token.WaitTimeout(connectPoll) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	token := c.Subscribe(s.opts.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		s.handleMessage(ctx, msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeWait) {
		return fmt.Errorf("subscribe timeout for topic %s", s.opts.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.opts.Topic, err)
	}
	s.logger.Info("subscribed to mqtt topic", zap.String("topic", s.opts.Topic))
	return nil
}

// handleMessage decodes, validates and stores one payload. Invalid messages are
// logged and dropped.
func (s *Subscriber) handleMessage(ctx context.Context, topic string, payload []byte) {
	s.logger.Debug("mqtt message received", zap.String("topic", topic), zap.Int("size", len(payload)))

	var o models.Observation
	if err := json.Unmarshal(payload, &o); err != nil {
		observability.IngestMessagesTotal.WithLabelValues("malformed").Inc()
		s.logger.Warn("malformed observation message", zap.String("topic", topic), zap.Error(err))
		return
	}
	valid, err := validation.ValidateObservation(o)
	if err != nil {
		observability.IngestMessagesTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("invalid observation message", zap.String("topic", topic), zap.String("city", o.City), zap.Error(err))
		return
	}
	// Ids and timestamps are assigned by the store.
	valid.ID = ""
	valid.CreatedAt = time.Time{}
	stored, err := s.store.SaveObservation(ctx, valid)
	if err != nil {
		observability.IngestMessagesTotal.WithLabelValues("store_error").Inc()
		s.logger.Error("store observation failed", zap.String("city", valid.City), zap.Error(err))
		return
	}
	observability.IngestMessagesTotal.WithLabelValues("stored").Inc()
	s.logger.Debug("observation stored", zap.String("id", stored.ID), zap.String("city", stored.City))
}

// IsConnected reports whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect unsubscribes and closes the connection. Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.IsConnected() {
		s.client.Unsubscribe(s.opts.Topic).WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(disconnectWait)
	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
