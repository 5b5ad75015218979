package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docqa/internal/model"
	"docqa/internal/platform/rabbitmq"
)

// EventRecorder stores an index event.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev *model.IndexEvent) error
}

// IndexEventWorker consumes index events from RabbitMQ and records them.
type IndexEventWorker struct {
	conn      *amqp.Connection
	recorder  EventRecorder
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexEventWorker(conn *amqp.Connection, recorder EventRecorder, queueName string) *IndexEventWorker {
	return &IndexEventWorker{
		conn:      conn,
		recorder:  recorder,
		queueName: queueName,
	}
}

func (w *IndexEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					log.Printf("index event worker: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IndexEventWorker) handle(ctx context.Context, body []byte) error {
	var ev model.IndexEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode index event failed: %w", err)
	}
	if ev.Type == "" {
		return fmt.Errorf("decode index event failed: missing type")
	}
	// ids are assigned by the store
	ev.ID = 0
	if err := w.recorder.RecordEvent(ctx, &ev); err != nil {
		return fmt.Errorf("persist index event failed: %w", err)
	}
	return nil
}

func (w *IndexEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
