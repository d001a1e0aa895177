package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_metrics/internal/domain"
)

func queuedJob(id string) *domain.ExtractionJob {
	return &domain.ExtractionJob{ID: id, State: domain.JobStatePending}
}

func TestJobQueue_PopEligible_OrderedByTime(t *testing.T) {
	q := newJobQueue()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	q.Push(queuedJob("late"), now.Add(2*time.Minute))
	q.Push(queuedJob("early"), now.Add(time.Minute))
	q.Push(queuedJob("due"), now)

	job := q.PopEligible(now)
	require.NotNil(t, job)
	assert.Equal(t, "due", job.ID)

	assert.Nil(t, q.PopEligible(now))

	job = q.PopEligible(now.Add(time.Minute))
	require.NotNil(t, job)
	assert.Equal(t, "early", job.ID)
}

func TestJobQueue_FIFOAmongEqualTimes(t *testing.T) {
	q := newJobQueue()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	q.Push(queuedJob("first"), now)
	q.Push(queuedJob("second"), now)
	q.Push(queuedJob("third"), now)

	assert.Equal(t, "first", q.PopEligible(now).ID)
	assert.Equal(t, "second", q.PopEligible(now).ID)
	assert.Equal(t, "third", q.PopEligible(now).ID)
}

func TestJobQueue_Remove(t *testing.T) {
	q := newJobQueue()
	now := time.Now()

	q.Push(queuedJob("a"), now)
	q.Push(queuedJob("b"), now)

	removed := q.Remove("a")
	require.NotNil(t, removed)
	assert.Equal(t, "a", removed.ID)
	assert.Equal(t, 1, q.Len())

	assert.Nil(t, q.Remove("missing"))

	assert.Equal(t, "b", q.PopEligible(now).ID)
}

func TestJobQueue_Peek(t *testing.T) {
	q := newJobQueue()

	_, ok := q.Peek()
	assert.False(t, ok)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q.Push(queuedJob("a"), now.Add(time.Hour))
	q.Push(queuedJob("b"), now)

	eligibleAt, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, now, eligibleAt)
	assert.Equal(t, 2, q.Len())
}

func TestJobQueue_WakeOnPush(t *testing.T) {
	q := newJobQueue()

	q.Push(queuedJob("a"), time.Now())

	select {
	case <-q.Wake():
	default:
		t.Fatal("expected wake signal after push")
	}
}
