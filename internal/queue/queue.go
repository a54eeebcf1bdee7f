package queue

import (
	"time"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	RebuildQueue = "rebuild_queue"
	DeleteQueue  = "delete_queue"

	// EventsExchange carries notifications about finished jobs.
	EventsExchange = "kg_events"

	// retryTTL is how long a failed message rests in its retry queue
	// before it is routed back to the work queue.
	retryTTL = 10 * time.Second
)

// Queues lists the work queues a worker consumes.
var Queues = []string{RebuildQueue, DeleteQueue}

func Init(cfg config.Queue) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.AMQPURL())
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "host", cfg.Host, "err", err)
		return nil, err
	}
	return conn, nil
}

// SetupQueues declares each work queue with a dead-letter queue
// (<name>_dlq) and a retry queue (<name>_retry) that routes expired
// messages back to <name>.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			logger.Error("QueueDeclare failed", "queue", name, "err", err)
			return err
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			logger.Error("QueueDeclare failed", "queue", dlqName, "err", err)
			return err
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryTTL.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			logger.Error("QueueDeclare failed", "queue", retryName, "err", err)
			return err
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.Publish("", queueName, false, false, publishing)
}

func PublishTopic(ch *amqp091.Channel, topic string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.Publish(EventsExchange, topic, false, false, publishing)
}

// MaxRetries is how often a message is retried before it is parked in
// the dead-letter queue.
const MaxRetries = 10

// RetryCount reads the x-retries header. AMQP tables may carry the
// number with any integer width.
func RetryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError sends a failed delivery to its retry queue, or
// to the dead-letter queue once MaxRetries is reached, and acks it.
func HandleProcessingError(ch *amqp091.Channel, msg amqp091.Delivery, queueName string) {
	retries := RetryCount(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= MaxRetries {
		target = queueName + "_dlq"
		logger.Warn("Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to republish message", "queue", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
