package queue

import (
	"context"
	"errors"
	"io"
	"testing"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (d *fakeDelivery) Ack(multiple bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(multiple, requeue bool) error {
	d.nacked = true
	d.requeue = requeue
	return nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestConsumer(handler EventHandler) *Consumer {
	return &Consumer{queueName: "activity_events", handler: handler, log: quietLogger()}
}

func TestDecodeEvent(t *testing.T) {
	actor := uuid.New()
	body, err := EncodeEvent(&models.ActivityEvent{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		ActorID:     &actor,
		Type:        models.EventContactEnrolled,
		Payload:     map[string]interface{}{"contact_email": "ana@example.com"},
	})
	require.NoError(t, err)

	event, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, models.EventContactEnrolled, event.Type)
	require.NotNil(t, event.ActorID)
	assert.Equal(t, actor, *event.ActorID)
	assert.Equal(t, "ana@example.com", event.Payload["contact_email"])

	_, err = DecodeEvent([]byte(`{"workspace_id": "not-json`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"payload": {}}`))
	assert.Error(t, err)

	_, err = EncodeEvent(nil)
	assert.Error(t, err)
}

func TestConsumer_ProcessAndSettle(t *testing.T) {
	var handled *models.ActivityEvent
	c := newTestConsumer(func(ctx context.Context, event *models.ActivityEvent) error {
		handled = event
		return nil
	})

	body, err := EncodeEvent(&models.ActivityEvent{ID: uuid.New(), WorkspaceID: uuid.New(), Type: models.EventEmailSent})
	require.NoError(t, err)

	d := &fakeDelivery{}
	c.settle(d, c.process(context.Background(), body), false)

	assert.True(t, d.acked)
	assert.False(t, d.nacked)
	require.NotNil(t, handled)
	assert.Equal(t, models.EventEmailSent, handled.Type)
}

func TestConsumer_MalformedEventIsDropped(t *testing.T) {
	calls := 0
	c := newTestConsumer(func(ctx context.Context, event *models.ActivityEvent) error {
		calls++
		return nil
	})

	d := &fakeDelivery{}
	c.settle(d, c.process(context.Background(), []byte("garbage")), false)

	assert.Equal(t, 0, calls)
	assert.True(t, d.nacked)
	assert.False(t, d.requeue)
}

func TestConsumer_HandlerFailureRequeuedOnce(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, event *models.ActivityEvent) error {
		return errors.New("database unavailable")
	})

	body, err := EncodeEvent(&models.ActivityEvent{ID: uuid.New(), WorkspaceID: uuid.New(), Type: models.EventEmailFailed})
	require.NoError(t, err)

	first := &fakeDelivery{}
	c.settle(first, c.process(context.Background(), body), false)
	assert.True(t, first.nacked)
	assert.True(t, first.requeue)

	second := &fakeDelivery{}
	c.settle(second, c.process(context.Background(), body), true)
	assert.True(t, second.nacked)
	assert.False(t, second.requeue)
}

func TestNewPublisherAndConsumerValidation(t *testing.T) {
	_, err := NewPublisher(nil, "activity_events")
	assert.Error(t, err)

	_, err = NewConsumer(nil, "activity_events", func(context.Context, *models.ActivityEvent) error { return nil }, quietLogger())
	assert.Error(t, err)

	_, err = NewConnection("", quietLogger())
	assert.Error(t, err)
}
