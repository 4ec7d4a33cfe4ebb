package activitypub

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okutkin/veche/domain"
)

// RedisQueue is the queue backend for multi-process deployments. Items
// are JSON encoded and pass through a single list, so several instances
// of the binary can share the delivery load.
type RedisQueue struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

func NewRedisQueue(addr, password string, db int, key string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Enqueue(item *domain.DeliveryQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.LPush(context.Background(), q.key, data).Err()
}

func (q *RedisQueue) Dequeue() *domain.DeliveryQueueItem {
	for !q.closed.Load() {
		res, err := q.client.BRPop(context.Background(), 2*time.Second, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			log.Printf("Queue: redis dequeue failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		// BRPop returns [key, value]
		if len(res) != 2 {
			continue
		}
		var item domain.DeliveryQueueItem
		if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
			log.Printf("Queue: discarding undecodable redis item: %v", err)
			continue
		}
		return &item
	}
	return nil
}

func (q *RedisQueue) Close() {
	q.closed.Store(true)
	if err := q.client.Close(); err != nil {
		log.Printf("Queue: closing redis client: %v", err)
	}
}
