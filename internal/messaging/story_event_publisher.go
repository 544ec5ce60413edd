package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"story-server/internal/model"
)

// StoryEventPublisher отправляет события завершения генерации внешним
// консьюмерам (почтовые рассылки, push и т.п.).
type StoryEventPublisher interface {
	PublishStoryEvent(ctx context.Context, event model.StoryEvent) error
	Close() error
}

// --- Реализация для RabbitMQ ---
type rabbitMQStoryEventPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	logger    zerolog.Logger
}

// NewRabbitMQStoryEventPublisher создает новый экземпляр паблишера.
func NewRabbitMQStoryEventPublisher(conn *amqp.Connection, queueName string, logger zerolog.Logger) (StoryEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story event publisher: не удалось открыть канал: %w", err)
	}

	// Объявляем очередь здесь, чтобы убедиться, что она существует.
	// Параметры должны совпадать с консьюмером (durable=true).
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("story event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	logger.Info().Str("queue", queueName).Msg("RabbitMQStoryEventPublisher инициализирован")
	return &rabbitMQStoryEventPublisher{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		logger:    logger.With().Str("component", "story_event_publisher").Logger(),
	}, nil
}

func (p *rabbitMQStoryEventPublisher) PublishStoryEvent(ctx context.Context, event model.StoryEvent) error {
	if p.channel == nil {
		p.logger.Error().Msg("Канал RabbitMQ не инициализирован (nil)")
		return errors.New("канал RabbitMQ не инициализирован")
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("username", event.Username).Msg("Ошибка маршалинга StoryEvent")
		return fmt.Errorf("ошибка подготовки сообщения StoryEvent: %w", err)
	}

	// Устанавливаем таймаут на публикацию
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (используем default)
		p.queueName, // routing key (имя очереди)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "story-server",
		},
	)
	if err != nil {
		p.logger.Error().Err(err).Str("queue", p.queueName).Str("username", event.Username).Msg("Ошибка публикации сообщения в очередь")
		return fmt.Errorf("ошибка публикации в очередь %s: %w", p.queueName, err)
	}

	p.logger.Debug().Str("queue", p.queueName).Str("type", event.Type).Str("username", event.Username).Msg("Событие опубликовано в очередь")
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *rabbitMQStoryEventPublisher) Close() error {
	if p.channel != nil {
		p.logger.Info().Msg("Закрытие канала RabbitMQ паблишера...")
		return p.channel.Close()
	}
	return nil
}

// NopStoryEventPublisher ничего не публикует; используется, когда RabbitMQ
// не сконфигурирован.
type NopStoryEventPublisher struct{}

func (NopStoryEventPublisher) PublishStoryEvent(ctx context.Context, event model.StoryEvent) error {
	return nil
}

func (NopStoryEventPublisher) Close() error { return nil }
