package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/metrics"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

const (
	natsDriver = "nats"
	// natsDedupWindow 相同 Nats-Msg-Id 在窗口内只入队一次
	natsDedupWindow = 2 * time.Minute
	natsFetchWait   = 5 * time.Second
)

// NATSQueue JetStream 工作队列，拉模式持久消费者
type NATSQueue struct {
	cfg  config.NATSConfig
	conn *nats.Conn
	js   nats.JetStreamContext
}

func NewNATSQueue(cfg config.NATSConfig) (*NATSQueue, error) {
	logger.WithFields(map[string]interface{}{"url": cfg.URL}).Info("Connecting to NATS server")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectDelay),
		nats.MaxReconnects(cfg.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithFields(map[string]interface{}{"url": nc.ConnectedUrl()}).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	q := &NATSQueue{cfg: cfg, conn: conn, js: js}
	if err := q.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	return q, nil
}

func (q *NATSQueue) ensureStream() error {
	_, err := q.js.StreamInfo(q.cfg.StreamName)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", q.cfg.StreamName, err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:       q.cfg.StreamName,
		Subjects:   []string{q.cfg.Subject},
		Retention:  nats.WorkQueuePolicy,
		Duplicates: natsDedupWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", q.cfg.StreamName, err)
	}

	logger.WithFields(map[string]interface{}{
		"stream":  q.cfg.StreamName,
		"subject": q.cfg.Subject,
	}).Info("Created JetStream stream")
	return nil
}

// Submit 以任务id作为 Nats-Msg-Id，重复提交由服务端去重
func (q *NATSQueue) Submit(ctx context.Context, job Job) (err error) {
	defer func() {
		metrics.QueueJobs.WithLabelValues(natsDriver, "submit", metrics.Outcome(err)).Inc()
	}()

	data, err := job.Encode()
	if err != nil {
		return errors.New(errors.ErrDispatch, "failed to encode job", err)
	}

	msg := nats.NewMsg(q.cfg.Subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, job.ID)

	if _, err := q.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return errors.New(errors.ErrDispatch, "failed to publish job", err)
	}
	return nil
}

func (q *NATSQueue) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	sub, err := q.js.PullSubscribe(q.cfg.Subject, q.cfg.Durable,
		nats.BindStream(q.cfg.StreamName),
		nats.ManualAck(),
		nats.AckWait(q.cfg.AckWait),
		nats.MaxDeliver(q.cfg.MaxDeliver),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", q.cfg.Subject, err)
	}
	defer sub.Unsubscribe()

	logger.WithFields(map[string]interface{}{
		"stream":      q.cfg.StreamName,
		"durable":     q.cfg.Durable,
		"concurrency": concurrency,
	}).Info("Starting JetStream consumer")

	batch := q.cfg.FetchBatch
	if batch < 1 {
		batch = concurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			logger.Info("Stopped JetStream consumer")
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, natsFetchWait)
		msgs, err := sub.Fetch(batch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if stderrors.Is(err, nats.ErrTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.WithError(err).Error("Failed to fetch messages")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			sem <- struct{}{}
			wg.Add(1)
			go func(msg *nats.Msg) {
				defer func() {
					<-sem
					wg.Done()
				}()
				q.handle(ctx, msg, handler)
			}(msg)
		}
	}
}

func (q *NATSQueue) handle(ctx context.Context, msg *nats.Msg, handler Handler) {
	// 失败次数以服务端的投递计数为准，消息体里的attempt不会更新
	attempt := 0
	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 0 {
		attempt = int(meta.NumDelivered) - 1
	}

	job, d, err := process(ctx, msg.Data, func(ctx context.Context, job Job) error {
		job.Attempt = attempt
		return handler(ctx, job)
	})
	job.Attempt = attempt
	metrics.QueueJobs.WithLabelValues(natsDriver, "consume", d.String()).Inc()

	switch d {
	case decisionAck:
		if err := msg.Ack(); err != nil {
			logger.WithError(err).Warn("Failed to ack message")
		}
	case decisionRetry:
		logJobFailure(natsDriver, job, d, err)
		if job.Attempt+1 >= q.cfg.MaxDeliver {
			logger.WithFields(map[string]interface{}{
				"job_id":  job.ID,
				"network": job.Network,
				"address": job.Address,
			}).Error("Job exhausted redeliveries")
		}
		if err := msg.NakWithDelay(q.cfg.NakDelay); err != nil {
			logger.WithError(err).Warn("Failed to nak message")
		}
	case decisionDrop:
		logJobFailure(natsDriver, job, d, err)
		if err := msg.Term(); err != nil {
			logger.WithError(err).Warn("Failed to terminate message")
		}
	}
}

func (q *NATSQueue) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Drain()
}
