package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rewardkit/adapters/memory"
	"rewardkit/core"
)

type failingNotificationStore struct {
	*mem.Store
}

func (f *failingNotificationStore) InsertNotification(context.Context, core.Notification) error {
	return errors.New("outbox unavailable")
}

func TestNotifierFailureDoesNotFailGrant(t *testing.T) {
	store := &failingNotificationStore{Store: mem.New()}
	svc, rec := newTestService(t, store, nil)

	res, err := svc.GrantXP(context.Background(), "u", 500, "bonus")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(500), res.NewTotal)
	assert.Len(t, rec.ofType(core.EventLevelUp), 1)
	assert.Empty(t, rec.ofType(core.EventNotificationCreated))
	assert.Equal(t, int64(1), svc.Notifier().Failures())
}

func TestNotifierPublishesCreatedEvent(t *testing.T) {
	store := mem.New()
	bus := NewEventBus(DispatchSync)
	rec := &recorder{}
	bus.Subscribe(core.EventNotificationCreated, rec.handle)
	n := NewNotifier(store, bus, nil)

	n.Notify(context.Background(), "u", core.NotificationSystem, "welcome")

	got := rec.ofType(core.EventNotificationCreated)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Notification)
	assert.Equal(t, "welcome", got[0].Notification.Message)
	assert.NotEmpty(t, got[0].Notification.ID)

	stored, err := store.ListNotifications(context.Background(), "u", true)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, got[0].Notification.ID, stored[0].ID)
	assert.Zero(t, n.Failures())
}
