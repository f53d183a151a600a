// This file contains the implementation of AMPQService. This service publishes the viewer's navigation events to an
// AMPQ message broker so that other systems (analytics, kiosks mirroring the tour) can follow along.
//
// This service expects a rabbitMQ AMPQ 0.9.1 broker to be running on the specified domain. The service connects to the
// broker and declares the navigation queue. Events are handed over through a buffered go channel and published by a
// single goroutine, so the viewer loop never waits on the broker; when the buffer is full the event is dropped.
//
// The publisher should be tolerant to connection failures and will attempt to reconnect before each publish if the
// connection is lost. It can be gracefully shut down by closing the stopChan.

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
)

const (
	DefaultNavigationQueue = "viewer-navigation"
	publishBuffer          = 64
	publishTimeout         = 5 * time.Second
	connectTimeout         = time.Minute / 4
)

// NavigationEvent is the message published for every applied transition.
type NavigationEvent struct {
	ID      string             `json:"id"`
	From    scene.ID           `json:"from"`
	To      scene.ID           `json:"to"`
	Trigger navigation.Trigger `json:"trigger"`
	At      time.Time          `json:"at"`
}

// NewNavigationEvent stamps a transition with a fresh id and the current time.
func NewNavigationEvent(t navigation.Transition) NavigationEvent {
	return NavigationEvent{
		ID:      uuid.NewString(),
		From:    t.From,
		To:      t.To,
		Trigger: t.Trigger,
		At:      time.Now().UTC(),
	}
}

// NavigationPublisher receives navigation events. Publish must not block.
type NavigationPublisher interface {
	Publish(event NavigationEvent)
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(NavigationEvent) {}

// brokerChannel is the part of *amqp.Channel the publisher uses.
type brokerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// brokerConnection is the part of *amqp.Connection the publisher uses.
type brokerConnection interface {
	Channel() (brokerChannel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (brokerChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialBroker(url string) (brokerConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

type AMPQService struct {
	url        string
	queueName  string
	dial       func(url string) (brokerConnection, error)
	connection brokerConnection
	channel    brokerChannel
	events     chan NavigationEvent
	logger     *log.Logger
	// used for reconnection and graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAMPQService connects to the broker at url and starts the publisher goroutine.
func NewAMPQService(url, queueName string, logger *log.Logger) (*AMPQService, error) {
	if queueName == "" {
		queueName = DefaultNavigationQueue
	}
	service := &AMPQService{
		url:       url,
		queueName: queueName,
		dial:      dialBroker,
		events:    make(chan NavigationEvent, publishBuffer),
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	err := service.connect()
	if err != nil {
		return nil, err
	}

	service.wg.Add(1)
	go service.runPublisher()

	return service, nil
}

// connect establishes a connection to the AMPQ message broker and declares the navigation queue.
// Any previous connection is closed first.
func (s *AMPQService) connect() error {
	s.logger.Info("Connecting to RabbitMQ...")
	s.closeConnection()

	timeout := time.Now().Add(connectTimeout)
	var (
		conn brokerConnection
		err  error
	)
	for time.Now().Before(timeout) {
		conn, err = s.dial(s.url)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	s.connection = conn

	return s.openChannel()
}

// openChannel opens a channel on the current connection and declares the navigation queue.
func (s *AMPQService) openChannel() error {
	ch, err := s.connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(s.queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", s.queueName, err)
	}

	s.channel = ch
	return nil
}

// closeConnection closes the channel and connection, if any.
func (s *AMPQService) closeConnection() {
	if s.channel != nil {
		if !s.channel.IsClosed() {
			s.channel.Close()
		}
		s.channel = nil
	}
	if s.connection != nil {
		if !s.connection.IsClosed() {
			s.connection.Close()
		}
		s.connection = nil
	}
}

// ensureConnection ensures that the AMPQ connection is established.
// A closed channel on a live connection is reopened without dialing again.
func (s *AMPQService) ensureConnection() error {
	connOpen := s.connection != nil && !s.connection.IsClosed()
	if connOpen && s.channel != nil && !s.channel.IsClosed() {
		return nil
	}

	if connOpen {
		s.logger.Info("Reopening RabbitMQ channel...")
		err := s.openChannel()
		if err == nil {
			return nil
		}
		s.logger.Warnf("Error reopening channel, reconnecting: %v", err)
	}

	s.logger.Info("Reconnecting to RabbitMQ...")
	return s.connect()
}

// Publish queues event for publishing. Never blocks; the event is dropped if the buffer is full.
func (s *AMPQService) Publish(event NavigationEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warnf("Navigation event buffer full, dropping event %s (%d -> %d)", event.ID, event.From, event.To)
	}
}

// runPublisher drains the event buffer until the service is shut down.
func (s *AMPQService) runPublisher() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			s.logger.Info("Stopping navigation publisher")
			return
		case event := <-s.events:
			if err := s.publish(event); err != nil {
				s.logger.Errorf("Error publishing navigation event %s: %v", event.ID, err)
			}
		}
	}
}

// publish sends a single event to the navigation queue.
func (s *AMPQService) publish(event NavigationEvent) error {
	if err := s.ensureConnection(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal navigation event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = s.channel.PublishWithContext(ctx, "", s.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.At,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish navigation event: %w", err)
	}

	s.logger.Debugf("Navigation event %s published (%d -> %d, %s)", event.ID, event.From, event.To, event.Trigger)
	return nil
}

// Shutdown shuts down the AMPQ service
func (s *AMPQService) Shutdown() {
	s.logger.Info("Shutting down AMQP service...")
	close(s.stopChan)
	s.wg.Wait()
	s.closeConnection()
	s.logger.Info("AMQP service shut down")
}
