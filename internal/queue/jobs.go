// Package queue defines the background tasks exchanged through asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// InspectLabelTask is scheduled after every stored upload.
	InspectLabelTask = "label:inspect"
)

// InspectPayload tells the worker which record to inspect.
type InspectPayload struct {
	RecordID string `json:"record_id"`
}

// NewInspectTask builds the task for recordID.
func NewInspectTask(recordID string) (*asynq.Task, error) {
	data, err := json.Marshal(InspectPayload{RecordID: recordID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(InspectLabelTask, data, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute)), nil
}

// ParseInspectPayload decodes a task payload.
func ParseInspectPayload(task *asynq.Task) (InspectPayload, error) {
	var p InspectPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.RecordID == "" {
		return p, fmt.Errorf("decode payload: missing record_id")
	}
	return p, nil
}

// Client is the part of *asynq.Client used to enqueue.
type Client interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules inspection tasks.
type Enqueuer struct {
	client Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueInspection schedules inspection of recordID.
func (e *Enqueuer) EnqueueInspection(ctx context.Context, recordID string) error {
	task, err := NewInspectTask(recordID)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue inspect task: %w", err)
	}
	return nil
}

// RedisOpt builds the connection options shared by client and worker.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}
