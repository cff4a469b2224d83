package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/repository"
)

const consumerTag = "message-persist-worker"

// MessagePersistWorker drains the persist queue and writes chat messages to
// the database. Chat handlers publish instead of writing directly so a slow
// database never blocks a turn.
//
// Undecodable payloads are dropped; database failures requeue the delivery
// once so a transient outage does not lose messages.
type MessagePersistWorker struct {
	conn      *amqp.Connection
	repo      *repository.MessageRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMessagePersistWorker(conn *amqp.Connection, repo *repository.MessageRepository, queueName string) *MessagePersistWorker {
	return &MessagePersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *MessagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(workerCtx, ch, deliveries)
	return nil
}

func (w *MessagePersistWorker) run(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	defer w.wg.Done()
	defer ch.Close()

	log := logrus.WithField("queue", w.queueName)
	log.Info("message persist worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("message persist worker stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Warn("delivery channel closed")
				return
			}
			w.handle(log, d)
		}
	}
}

func (w *MessagePersistWorker) handle(log *logrus.Entry, d amqp.Delivery) {
	var msg model.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.WithError(err).Error("decode message failed, dropping")
		_ = d.Nack(false, false)
		return
	}

	if err := w.repo.Create(&msg); err != nil {
		requeue := !d.Redelivered
		log.WithError(err).WithField("requeue", requeue).Error("persist message failed")
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Close stops the consumer loop and waits for the in-flight delivery.
func (w *MessagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
