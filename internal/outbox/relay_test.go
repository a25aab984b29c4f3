package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange   string
	routingKey string
	body       string
	persistent bool
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) PublishMessage(_ context.Context, exchange, routingKey string, message []byte, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange, routingKey, string(message), persistent})
	return nil
}

type fakeStatus struct {
	statuses []types.JobStatus
}

func (f *fakeStatus) SetJobStatus(_ context.Context, status *types.JobStatus) error {
	f.statuses = append(f.statuses, *status)
	return nil
}

func pendingMessage(id uint64, jobID string, retries int) models.OutboxMessage {
	return models.OutboxMessage{
		ID:               id,
		AggregateID:      jobID,
		EventType:        "resume.ingest",
		Payload:          `{"job_id":"` + jobID + `"}`,
		TargetExchange:   "resume.exchange",
		TargetRoutingKey: "resume.ingest",
		Status:           models.OutboxStatusPending,
		RetryCount:       retries,
	}
}

func TestRelayBatch_Sent(t *testing.T) {
	pub := &fakePublisher{}
	r := NewMessageRelay(nil, pub)

	var saved []models.OutboxMessage
	msgs := []models.OutboxMessage{pendingMessage(1, "job-1", 0), pendingMessage(2, "job-2", 3)}
	msgs[1].ErrorMessage = "previous error"

	failed, err := r.relayBatch(context.Background(), msgs, func(m *models.OutboxMessage) error {
		saved = append(saved, *m)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, failed)

	require.Len(t, pub.sent, 2)
	assert.Equal(t, published{"resume.exchange", "resume.ingest", `{"job_id":"job-1"}`, true}, pub.sent[0])

	require.Len(t, saved, 2)
	for _, m := range saved {
		assert.Equal(t, models.OutboxStatusSent, m.Status)
		assert.NotNil(t, m.ProcessedAt)
		assert.Empty(t, m.ErrorMessage)
	}
	assert.Equal(t, 3, saved[1].RetryCount)
}

func TestRelayBatch_PublishErrorCountsRetry(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	status := &fakeStatus{}
	r := NewMessageRelay(nil, pub, WithJobStatus(status))

	msgs := []models.OutboxMessage{pendingMessage(1, "job-1", 0)}
	failed, err := r.relayBatch(context.Background(), msgs, func(*models.OutboxMessage) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, failed)

	assert.Equal(t, models.OutboxStatusPending, msgs[0].Status)
	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Equal(t, "channel closed", msgs[0].ErrorMessage)
	assert.Nil(t, msgs[0].ProcessedAt)
	assert.Empty(t, status.statuses)
}

func TestRelayBatch_RetriesExhaustedMarksJobFailed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	status := &fakeStatus{}
	r := NewMessageRelay(nil, pub, WithJobStatus(status))

	msgs := []models.OutboxMessage{
		pendingMessage(1, "job-1", maxRetryCount-1),
		pendingMessage(2, "job-2", 0),
	}
	failed, err := r.relayBatch(context.Background(), msgs, func(*models.OutboxMessage) error { return nil })
	require.NoError(t, err)

	require.Len(t, failed, 1)
	assert.Equal(t, "job-1", failed[0].AggregateID)
	assert.Equal(t, models.OutboxStatusFailed, msgs[0].Status)
	assert.Equal(t, maxRetryCount, msgs[0].RetryCount)
	assert.Equal(t, models.OutboxStatusPending, msgs[1].Status)

	r.markJobsFailed(context.Background(), failed)
	require.Len(t, status.statuses, 1)
	assert.Equal(t, "job-1", status.statuses[0].JobID)
	assert.Equal(t, types.JobStateFailed, status.statuses[0].Status)
	assert.Contains(t, status.statuses[0].Error, "channel closed")
}

func TestRelayBatch_SaveErrorAbortsBatch(t *testing.T) {
	pub := &fakePublisher{}
	r := NewMessageRelay(nil, pub)

	msgs := []models.OutboxMessage{pendingMessage(1, "job-1", 0), pendingMessage(2, "job-2", 0)}
	_, err := r.relayBatch(context.Background(), msgs, func(*models.OutboxMessage) error {
		return errors.New("deadlock found")
	})
	require.Error(t, err)
	assert.Len(t, pub.sent, 1)
}

func TestMarkJobsFailed_WithoutStatusStore(t *testing.T) {
	r := NewMessageRelay(nil, &fakePublisher{})
	msg := pendingMessage(1, "job-1", maxRetryCount)
	msg.Status = models.OutboxStatusFailed

	assert.NotPanics(t, func() {
		r.markJobsFailed(context.Background(), []*models.OutboxMessage{&msg})
	})
}
