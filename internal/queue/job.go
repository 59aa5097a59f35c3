package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"tron-wallet-explorer/internal/models"
)

// TaskSaveWalletInfo 延迟落库任务
const TaskSaveWalletInfo = "save_wallet_info"

type Job struct {
	ID          string            `json:"id"`
	Task        string            `json:"task"`
	Network     models.Network    `json:"network"`
	Address     string            `json:"address"`
	Info        models.WalletInfo `json:"info"`
	SubmittedAt time.Time         `json:"submitted_at"`
	// Attempt 已失败的次数，首次投递为0
	Attempt int `json:"attempt"`
}

func NewSaveWalletInfoJob(network models.Network, address string, info models.WalletInfo) Job {
	return Job{
		ID:          uuid.NewString(),
		Task:        TaskSaveWalletInfo,
		Network:     network,
		Address:     address,
		Info:        info,
		SubmittedAt: time.Now().UTC(),
	}
}

func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Decode 解析并检查任务，失败说明消息本身坏了，重投也没有意义
func Decode(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("invalid job payload: %w", err)
	}
	if job.Task != TaskSaveWalletInfo {
		return Job{}, fmt.Errorf("unknown task %q", job.Task)
	}
	if job.ID == "" || job.Network == "" || job.Address == "" {
		return Job{}, fmt.Errorf("job %q missing network or address", job.ID)
	}
	if err := job.Info.Validate(); err != nil {
		return Job{}, fmt.Errorf("job %s: %w", job.ID, err)
	}
	return job, nil
}

// Dispatcher 投递任务，由外部worker至少执行一次
type Dispatcher interface {
	Submit(ctx context.Context, job Job) error
}

type Handler func(ctx context.Context, job Job) error

// Queue 一个驱动同时提供投递和消费
type Queue interface {
	Dispatcher
	io.Closer
	// Consume 阻塞直到ctx取消
	Consume(ctx context.Context, concurrency int, handler Handler) error
}

type decision int

const (
	decisionAck decision = iota
	decisionRetry
	decisionDrop
)

func (d decision) String() string {
	switch d {
	case decisionAck:
		return "ack"
	case decisionRetry:
		return "retry"
	default:
		return "drop"
	}
}

// process 两种驱动共用的消息处理：坏消息丢弃，处理失败交给驱动重投
func process(ctx context.Context, data []byte, handler Handler) (Job, decision, error) {
	job, err := Decode(data)
	if err != nil {
		return Job{}, decisionDrop, err
	}
	if err := handler(ctx, job); err != nil {
		return job, decisionRetry, err
	}
	return job, decisionAck, nil
}
