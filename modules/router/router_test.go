package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/domain/user"
	"github.com/example/product-catalog/events"
	"github.com/example/product-catalog/modules/dispatcher"
	"github.com/example/product-catalog/modules/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	admins []*user.User
	err    error
}

func (d *fakeDirectory) FirstAdmin(_ context.Context) (*user.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	if len(d.admins) == 0 {
		return nil, ErrNoAdmin
	}
	return d.admins[0], nil
}

func (d *fakeDirectory) Admins(_ context.Context) ([]*user.User, error) {
	return d.admins, d.err
}

func admin(id string) *user.User {
	return &user.User{ID: id, Name: "Admin " + id, Email: id + "@example.com", IsAdmin: true}
}

func productCreated() events.ProductCreatedEvent {
	return events.ProductCreatedEvent{
		ProductID:      "p1",
		Name:           "Lamp",
		PriceCents:     12300,
		PriceFormatted: "123.00",
		CreatedAt:      time.Now().UTC(),
	}
}

func decodeNotification(t *testing.T, j *job.Job) notification.Job {
	t.Helper()
	var n notification.Job
	require.NoError(t, j.Decode(&n))
	return n
}

func TestOnProductCreated_OneJobForFirstAdmin(t *testing.T) {
	q := queue.NewMemoryQueue()
	r := New(&fakeDirectory{admins: []*user.User{admin("a1"), admin("a2")}}, dispatcher.New(q))

	j, err := r.OnProductCreated(context.Background(), productCreated())
	require.NoError(t, err)
	require.NotNil(t, j)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.JobTypeNotification, jobs[0].Type)

	n := decodeNotification(t, jobs[0])
	assert.Equal(t, notification.EventProductCreated, n.Event)
	assert.Equal(t, []notification.ChannelKind{notification.ChannelMail, notification.ChannelDatabase}, n.Channels)
	require.Len(t, n.Recipients, 1)
	assert.Equal(t, "a1@example.com", n.Recipients[0].Email)

	var payload notification.ProductPayload
	require.NoError(t, json.Unmarshal(n.Payload, &payload))
	assert.Equal(t, "p1", payload.ID)
	assert.Equal(t, int64(12300), payload.Price)
}

func TestOnProductCreated_NoAdminFails(t *testing.T) {
	q := queue.NewMemoryQueue()
	r := New(&fakeDirectory{}, dispatcher.New(q))

	_, err := r.OnProductCreated(context.Background(), productCreated())
	assert.ErrorIs(t, err, ErrNoAdmin)
	assert.Equal(t, 0, q.Len())
}

func TestOnUserRegistered_AllAdminsDatabaseOnly(t *testing.T) {
	q := queue.NewMemoryQueue()
	r := New(&fakeDirectory{admins: []*user.User{admin("a1"), admin("a2")}}, dispatcher.New(q))

	_, err := r.OnUserRegistered(context.Background(), events.UserRegisteredEvent{
		UserID: "u9", Name: "New", Email: "new@example.com", RegisteredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	n := decodeNotification(t, jobs[0])
	assert.Equal(t, notification.EventUserRegistered, n.Event)
	assert.Equal(t, []notification.ChannelKind{notification.ChannelDatabase}, n.Channels)
	assert.Len(t, n.Recipients, 2)
}

func TestOnUserRegistered_NoAdminsIsNoop(t *testing.T) {
	q := queue.NewMemoryQueue()
	r := New(&fakeDirectory{}, dispatcher.New(q))

	j, err := r.OnUserRegistered(context.Background(), events.UserRegisteredEvent{UserID: "u9"})
	assert.NoError(t, err)
	assert.Nil(t, j)
	assert.Equal(t, 0, q.Len())
}

func TestRouter_DirectoryErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	r := New(&fakeDirectory{err: boom}, dispatcher.New(queue.NewMemoryQueue()))

	_, err := r.OnProductCreated(context.Background(), productCreated())
	assert.ErrorIs(t, err, boom)
	_, err = r.OnUserRegistered(context.Background(), events.UserRegisteredEvent{})
	assert.ErrorIs(t, err, boom)
}
