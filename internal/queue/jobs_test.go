package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	if c.err != nil {
		return nil, c.err
	}
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func TestEnqueueInspection(t *testing.T) {
	client := &recordingClient{}
	require.NoError(t, NewEnqueuer(client).EnqueueInspection(context.Background(), "rec-1"))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, InspectLabelTask, client.tasks[0].Type())

	p, err := ParseInspectPayload(client.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "rec-1", p.RecordID)
}

func TestEnqueueInspectionError(t *testing.T) {
	client := &recordingClient{err: errors.New("redis down")}
	err := NewEnqueuer(client).EnqueueInspection(context.Background(), "rec-1")
	assert.ErrorContains(t, err, "redis down")
}

func TestParseInspectPayloadRejectsEmpty(t *testing.T) {
	_, err := ParseInspectPayload(asynq.NewTask(InspectLabelTask, []byte(`{}`)))
	assert.Error(t, err)
	_, err = ParseInspectPayload(asynq.NewTask(InspectLabelTask, []byte(`{`)))
	assert.Error(t, err)
}
