package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory NotificationStore that mirrors the repository's
// counting and ordering semantics.
type memStore struct {
	mu         sync.Mutex
	notifs     []*models.Notification
	failInsert bool
}

func (s *memStore) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return errors.New("storage unavailable")
	}
	n.ID = primitive.NewObjectID()
	s.notifs = append(s.notifs, n)
	return nil
}

func (s *memStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.notifs) - 1; i >= 0; i-- {
		if s.notifs[i].UserID == userID {
			out = append(out, *s.notifs[i])
		}
	}
	return out, nil
}

func (s *memStore) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memStore) MarkRead(_ context.Context, userID, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifs {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return errors.New("notification not found")
}

func (s *memStore) MarkAllRead(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifs {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (s *memStore) DeleteExpired(context.Context) error { return nil }

// recorderConn implements ws.Conn and records every pushed frame as JSON.
type recorderConn struct {
	id     string
	userID string

	mu       sync.Mutex
	frames   []map[string]interface{}
	failSend bool
	closed   bool
}

func newRecorderConn(id, userID string) *recorderConn {
	return &recorderConn{id: id, userID: userID}
}

func (c *recorderConn) ID() string     { return c.id }
func (c *recorderConn) UserID() string { return c.userID }

func (c *recorderConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *recorderConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recorderConn) framesOfType(t string) []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]interface{}
	for _, f := range c.frames {
		if f["type"] == t {
			out = append(out, f)
		}
	}
	return out
}

func newDispatcher() (*NotificationService, *memStore, *ws.Registry) {
	store := &memStore{}
	registry := ws.NewRegistry()
	return NewNotificationService(store, registry), store, registry
}

func TestDispatchPersistsWithoutConnections(t *testing.T) {
	svc, store, _ := newDispatcher()
	user := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		_, err := svc.Dispatch(context.Background(), user, models.NotifNewBooking, "Nova reserva", "detalhes", nil)
		require.NoError(t, err)
	}

	list, err := store.ListByUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, n := range list {
		assert.False(t, n.Read)
	}

	count, err := svc.UnreadCount(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestDispatchFansOutToAllConnections(t *testing.T) {
	svc, _, registry := newDispatcher()
	user := primitive.NewObjectID()

	tab1 := newRecorderConn("tab-1", user.Hex())
	tab2 := newRecorderConn("tab-2", user.Hex())
	registry.Register(user.Hex(), tab1)
	registry.Register(user.Hex(), tab2)

	_, err := svc.Dispatch(context.Background(), user, models.NotifChatMessage, "Nova mensagem", "oi", nil)
	require.NoError(t, err)

	for _, c := range []*recorderConn{tab1, tab2} {
		notifs := c.framesOfType(ws.FrameNotification)
		require.Len(t, notifs, 1, "connection %s", c.id)
		data := notifs[0]["data"].(map[string]interface{})
		assert.Equal(t, "Nova mensagem", data["title"])
		assert.Equal(t, false, data["isRead"])

		counts := c.framesOfType(ws.FrameUnreadCount)
		require.Len(t, counts, 1)
		assert.Equal(t, float64(1), counts[0]["count"])
	}
}

func TestDispatchSkipsOtherUsersConnections(t *testing.T) {
	svc, _, registry := newDispatcher()
	target := primitive.NewObjectID()
	bystander := primitive.NewObjectID()

	other := newRecorderConn("other", bystander.Hex())
	registry.Register(bystander.Hex(), other)

	_, err := svc.Dispatch(context.Background(), target, models.NotifGeneric, "Aviso", "corpo", nil)
	require.NoError(t, err)

	assert.Empty(t, other.frames)
}

func TestDispatchDropsFailingConnectionAndContinues(t *testing.T) {
	svc, _, registry := newDispatcher()
	user := primitive.NewObjectID()

	dead := newRecorderConn("dead", user.Hex())
	dead.failSend = true
	live := newRecorderConn("live", user.Hex())
	registry.Register(user.Hex(), dead)
	registry.Register(user.Hex(), live)

	_, err := svc.Dispatch(context.Background(), user, models.NotifOrderEvent, "Pedido", "corpo", nil)
	require.NoError(t, err)

	assert.Len(t, live.framesOfType(ws.FrameNotification), 1)
	assert.True(t, dead.closed)

	// The dead connection is evicted; only the live one remains.
	conns := registry.ConnectionsFor(user.Hex())
	require.Len(t, conns, 1)
	assert.Equal(t, "live", conns[0].ID())
}

func TestDispatchPropagatesPersistenceFailure(t *testing.T) {
	svc, store, registry := newDispatcher()
	user := primitive.NewObjectID()
	store.failInsert = true

	tab := newRecorderConn("tab", user.Hex())
	registry.Register(user.Hex(), tab)

	_, err := svc.Dispatch(context.Background(), user, models.NotifGeneric, "Aviso", "corpo", nil)
	require.Error(t, err)

	// Nothing may be pushed when the durable write failed.
	assert.Empty(t, tab.frames)
}

func TestUnreadCountTracksReads(t *testing.T) {
	svc, _, _ := newDispatcher()
	user := primitive.NewObjectID()
	ctx := context.Background()

	var first *models.Notification
	for i := 0; i < 5; i++ {
		n, err := svc.Dispatch(ctx, user, models.NotifGeneric, "Aviso", "corpo", nil)
		require.NoError(t, err)
		if first == nil {
			first = n
		}
	}

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	require.NoError(t, svc.MarkNotificationRead(ctx, user, first.ID))
	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// Idempotent: marking the same one again changes nothing.
	require.NoError(t, svc.MarkNotificationRead(ctx, user, first.ID))
	count, _ = svc.UnreadCount(ctx, user)
	assert.Equal(t, int64(4), count)

	require.NoError(t, svc.MarkAllNotificationsRead(ctx, user))
	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkReadRequiresOwnership(t *testing.T) {
	svc, _, _ := newDispatcher()
	recipient := primitive.NewObjectID()
	intruder := primitive.NewObjectID()
	ctx := context.Background()

	n, err := svc.Dispatch(ctx, recipient, models.NotifGeneric, "Aviso", "corpo", nil)
	require.NoError(t, err)

	// Another authenticated user cannot acknowledge the recipient's
	// notification, and the recipient's unread count must not move.
	require.Error(t, svc.MarkNotificationRead(ctx, intruder, n.ID))

	count, err := svc.UnreadCount(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.MarkNotificationRead(ctx, recipient, n.ID))
	count, _ = svc.UnreadCount(ctx, recipient)
	assert.Equal(t, int64(0), count)
}

func TestMarkReadPushesRefreshedCount(t *testing.T) {
	svc, _, registry := newDispatcher()
	user := primitive.NewObjectID()
	ctx := context.Background()

	n, err := svc.Dispatch(ctx, user, models.NotifGeneric, "Aviso", "corpo", nil)
	require.NoError(t, err)

	tab := newRecorderConn("tab", user.Hex())
	registry.Register(user.Hex(), tab)

	require.NoError(t, svc.MarkNotificationRead(ctx, user, n.ID))

	counts := tab.framesOfType(ws.FrameUnreadCount)
	require.Len(t, counts, 1)
	assert.Equal(t, float64(0), counts[0]["count"])
}

func TestListNotificationsNewestFirst(t *testing.T) {
	svc, _, _ := newDispatcher()
	user := primitive.NewObjectID()
	ctx := context.Background()

	titles := []string{"primeira", "segunda", "terceira"}
	for _, title := range titles {
		_, err := svc.Dispatch(ctx, user, models.NotifGeneric, title, "corpo", nil)
		require.NoError(t, err)
	}

	list, err := svc.ListNotifications(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "terceira", list[0].Title)
	assert.Equal(t, "primeira", list[2].Title)
}
