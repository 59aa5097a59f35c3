package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"

	"tron-wallet-explorer/internal/config"
)

func newTestNATSQueue(t *testing.T) *NATSQueue {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)

	q, err := NewNATSQueue(config.NATSConfig{
		URL:               s.ClientURL(),
		Name:              "queue-test",
		StreamName:        "WALLET_TEST",
		Subject:           "wallet.test.save",
		Durable:           "wallet-test-worker",
		MaxDeliver:        3,
		AckWait:           2 * time.Second,
		NakDelay:          10 * time.Millisecond,
		FetchBatch:        1,
		ConnectTimeout:    2 * time.Second,
		ReconnectAttempts: 0,
		ReconnectDelay:    100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewNATSQueue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

// consume 在后台运行消费者，测试结束时停止并等待退出
func consume(t *testing.T, q *NATSQueue, handler Handler) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := q.Consume(ctx, 1, handler); err != nil {
			t.Errorf("Consume: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// streamMsgs 工作队列里尚未确认的消息数
func streamMsgs(t *testing.T, q *NATSQueue) uint64 {
	t.Helper()
	info, err := q.js.StreamInfo(q.cfg.StreamName)
	if err != nil {
		t.Fatalf("StreamInfo: %v", err)
	}
	return info.State.Msgs
}

func TestNATSQueue_SubmitDeduplicatesByJobID(t *testing.T) {
	q := newTestNATSQueue(t)
	job := testJob(0)

	for i := 0; i < 2; i++ {
		if err := q.Submit(context.Background(), job); err != nil {
			t.Fatalf("Submit #%d: %v", i+1, err)
		}
	}
	if n := streamMsgs(t, q); n != 1 {
		t.Fatalf("stream holds %d messages, want 1", n)
	}

	if err := q.Submit(context.Background(), testJob(0)); err != nil {
		t.Fatal(err)
	}
	if n := streamMsgs(t, q); n != 2 {
		t.Fatalf("stream holds %d messages, want 2", n)
	}
}

func TestNATSQueue_AckRemovesJob(t *testing.T) {
	q := newTestNATSQueue(t)
	job := testJob(0)
	if err := q.Submit(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var seen []Job
	consume(t, q, func(ctx context.Context, j Job) error {
		mu.Lock()
		seen = append(seen, j)
		mu.Unlock()
		return nil
	})

	waitFor(t, "ack", func() bool { return streamMsgs(t, q) == 0 })

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].ID != job.ID || seen[0].Attempt != 0 {
		t.Fatalf("handled jobs = %+v", seen)
	}
}

func TestNATSQueue_NakRedeliversWithAttempt(t *testing.T) {
	q := newTestNATSQueue(t)
	job := testJob(0)
	if err := q.Submit(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var attempts []int
	consume(t, q, func(ctx context.Context, j Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, j.Attempt)
		if len(attempts) == 1 {
			return stderrors.New("database down")
		}
		return nil
	})

	waitFor(t, "redelivered job to be acked", func() bool {
		mu.Lock()
		n := len(attempts)
		mu.Unlock()
		return n >= 2 && streamMsgs(t, q) == 0
	})

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Fatalf("attempts = %v, want [0 1]", attempts)
	}
}

func TestNATSQueue_StopsRedeliveringAfterMaxDeliver(t *testing.T) {
	q := newTestNATSQueue(t)
	if err := q.Submit(context.Background(), testJob(0)); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	consume(t, q, func(ctx context.Context, j Job) error {
		calls.Add(1)
		return stderrors.New("database down")
	})

	waitFor(t, "max deliveries", func() bool { return calls.Load() >= int32(q.cfg.MaxDeliver) })
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != int32(q.cfg.MaxDeliver) {
		t.Fatalf("handler ran %d times, want %d", n, q.cfg.MaxDeliver)
	}
}

func TestNATSQueue_TermDropsMalformedPayload(t *testing.T) {
	q := newTestNATSQueue(t)
	if _, err := q.js.Publish(q.cfg.Subject, []byte(`{"id":"1","task":"other"}`)); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	consume(t, q, func(ctx context.Context, j Job) error {
		calls.Add(1)
		return nil
	})

	waitFor(t, "terminated message", func() bool {
		info, err := q.js.ConsumerInfo(q.cfg.StreamName, q.cfg.Durable)
		if err != nil {
			return false
		}
		return info.Delivered.Consumer == 1 && info.NumAckPending == 0
	})
	time.Sleep(200 * time.Millisecond)

	info, err := q.js.ConsumerInfo(q.cfg.StreamName, q.cfg.Durable)
	if err != nil {
		t.Fatal(err)
	}
	if info.Delivered.Consumer != 1 || info.NumRedelivered != 0 {
		t.Fatalf("delivered %d, redelivered %d, want 1/0", info.Delivered.Consumer, info.NumRedelivered)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("handler ran %d times for a malformed payload", n)
	}
}
