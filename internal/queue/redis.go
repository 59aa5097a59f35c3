package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/metrics"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

const redisDriver = "redis"

// RedisQueue 基于list的可靠队列：BLMOVE 到处理中列表，完成后 LREM
// 处理中列表里残留的任务说明worker中途退出，需要人工重放
type RedisQueue struct {
	client *redis.Client
	cfg    config.RedisConfig
}

func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
		// 读超时必须大于 BLMOVE 的阻塞时间
		ReadTimeout: cfg.BlockTimeout + 5*time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.WithFields(map[string]interface{}{"addr": cfg.Addr}).Info("Redis connected")

	return newRedisQueue(client, cfg), nil
}

func newRedisQueue(client *redis.Client, cfg config.RedisConfig) *RedisQueue {
	return &RedisQueue{client: client, cfg: cfg}
}

func (q *RedisQueue) processingKey() string {
	return q.cfg.Queue + ":processing"
}

func (q *RedisQueue) deadKey() string {
	return q.cfg.Queue + ":dead"
}

func (q *RedisQueue) Submit(ctx context.Context, job Job) (err error) {
	defer func() {
		metrics.QueueJobs.WithLabelValues(redisDriver, "submit", metrics.Outcome(err)).Inc()
	}()

	data, err := job.Encode()
	if err != nil {
		return errors.New(errors.ErrDispatch, "failed to encode job", err)
	}
	if err := q.client.LPush(ctx, q.cfg.Queue, data).Err(); err != nil {
		return errors.New(errors.ErrDispatch, "failed to push job", err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	logger.WithFields(map[string]interface{}{
		"queue":       q.cfg.Queue,
		"concurrency": concurrency,
	}).Info("Starting Redis consumer")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.loop(ctx, handler)
		}()
	}
	wg.Wait()

	logger.Info("Stopped Redis consumer")
	return nil
}

func (q *RedisQueue) loop(ctx context.Context, handler Handler) {
	for ctx.Err() == nil {
		data, err := q.client.BLMove(ctx, q.cfg.Queue, q.processingKey(), "RIGHT", "LEFT", q.cfg.BlockTimeout).Result()
		if err != nil {
			if stderrors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.WithError(err).Error("Failed to pop job")
			time.Sleep(time.Second)
			continue
		}

		if err := q.handle(ctx, data, handler); err != nil {
			logger.WithError(err).Error("Failed to settle job")
		}
	}
}

// handle 处理一条消息并把它移出处理中列表
func (q *RedisQueue) handle(ctx context.Context, data string, handler Handler) error {
	job, d, err := process(ctx, []byte(data), handler)

	// 进程退出时也要把结果写回，不使用已取消的ctx
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if d == decisionRetry && job.Attempt+1 >= q.cfg.MaxAttempts {
		d = decisionDrop
	}
	metrics.QueueJobs.WithLabelValues(redisDriver, "consume", d.String()).Inc()

	switch d {
	case decisionAck:
		return q.client.LRem(settleCtx, q.processingKey(), 1, data).Err()

	case decisionRetry:
		logJobFailure(redisDriver, job, d, err)
		job.Attempt++
		retry, encErr := job.Encode()
		if encErr != nil {
			return encErr
		}
		_, pErr := q.client.TxPipelined(settleCtx, func(pipe redis.Pipeliner) error {
			pipe.LRem(settleCtx, q.processingKey(), 1, data)
			pipe.LPush(settleCtx, q.cfg.Queue, retry)
			return nil
		})
		return pErr

	default:
		logJobFailure(redisDriver, job, d, err)
		_, pErr := q.client.TxPipelined(settleCtx, func(pipe redis.Pipeliner) error {
			pipe.LRem(settleCtx, q.processingKey(), 1, data)
			pipe.LPush(settleCtx, q.deadKey(), data)
			return nil
		})
		return pErr
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
