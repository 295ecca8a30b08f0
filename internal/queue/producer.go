package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidTask = errors.New("task needs a purchase id or booking number")

type Producer struct {
	client redis.Cmdable
	stream string
}

func NewProducer(client redis.Cmdable, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue appends the task to the stream and returns its entry id.
func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.PurchaseID == "" && task.BookingNumber == "" {
		return "", ErrInvalidTask
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 100000,
		Approx: true,
		Values: task.values(),
	}).Result()
}
