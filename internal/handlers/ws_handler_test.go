package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	jwtutil "github.com/marcelolino/servicos-conecte-sub004/pkg/jwt"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/logger"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "unit-test-secret"

func init() {
	logger.InitLogger()
}

// memStore keeps notifications in memory with the repository's semantics.
type memStore struct {
	mu     sync.Mutex
	notifs []*models.Notification
}

func (s *memStore) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now()
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

type testEnv struct {
	server   *httptest.Server
	registry *ws.Registry
	notifs   *services.NotificationService
	store    *memStore
}

func newTestEnv(t *testing.T, authTimeout time.Duration) *testEnv {
	t.Helper()

	store := &memStore{}
	registry := ws.NewRegistry()
	notifSvc := services.NewNotificationService(store, registry)
	wsHandler := NewWSHandler(registry, notifSvc, nil, testSecret, authTimeout)
	notifHandler := NewNotificationHandler(notifSvc)

	// Same router shape as cmd/server: the logging middleware wraps /ws too,
	// so upgrades must survive the wrapped ResponseWriter.
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.HandleFunc("/ws", wsHandler.ServeWS)
	notifRoutes := router.PathPrefix("/notifications").Subrouter()
	notifRoutes.Use(middleware.AuthMiddleware(testSecret))
	notifRoutes.HandleFunc("", notifHandler.GetNotificationsHandler).Methods("GET")
	notifRoutes.HandleFunc("/unread-count", notifHandler.GetUnreadCountHandler).Methods("GET")

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, registry: registry, notifs: notifSvc, store: store}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func tokenFor(t *testing.T, userID primitive.ObjectID) string {
	t.Helper()
	token, err := jwtutil.GenerateToken(userID.Hex(), "user@example.com", models.RoleClient, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandshakeSuccessDeliversAckAndCount(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	user := primitive.NewObjectID()
	ctx := context.Background()

	// Dispatched while the user was offline; only persistence happens.
	for i := 0; i < 3; i++ {
		_, err := env.notifs.Dispatch(ctx, user, models.NotifNewBooking, "Nova reserva", "detalhes", nil)
		require.NoError(t, err)
	}

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": tokenFor(t, user)}))

	frame := readFrame(t, conn)
	assert.Equal(t, "auth_success", frame["type"])

	frame = readFrame(t, conn)
	assert.Equal(t, "unread_count", frame["type"])
	assert.Equal(t, float64(3), frame["count"])

	require.Eventually(t, func() bool { return env.registry.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestUpgradeSucceedsThroughLoggingMiddleware(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	user := primitive.NewObjectID()

	// The env router wraps /ws in LoggingMiddleware like the server wiring
	// does; the dial itself fails if the wrapped writer cannot be hijacked.
	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": tokenFor(t, user)}))

	frame := readFrame(t, conn)
	assert.Equal(t, "auth_success", frame["type"])
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "garbage"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])

	// The server closes after the rejection frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var next map[string]interface{}
	require.Error(t, conn.ReadJSON(&next))
	assert.Equal(t, 0, env.registry.Len())
}

func TestHandshakeIgnoresFramesBeforeAuth(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	user := primitive.NewObjectID()

	conn := env.dial(t)
	// A buffered client frame arriving before the auth frame is tolerated.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat", "text": "early"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": tokenFor(t, user)}))

	frame := readFrame(t, conn)
	assert.Equal(t, "auth_success", frame["type"])
}

func TestHandshakeTimesOutIdleSockets(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)

	conn := env.dial(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.Error(t, conn.ReadJSON(&frame), "server should close a socket that never authenticates")
	assert.Equal(t, 0, env.registry.Len())
}

func TestUnauthenticatedConnectionReceivesNoDispatches(t *testing.T) {
	env := newTestEnv(t, time.Second)
	user := primitive.NewObjectID()

	conn := env.dial(t)

	_, err := env.notifs.Dispatch(context.Background(), user, models.NotifGeneric, "Aviso", "corpo", nil)
	require.NoError(t, err)

	// Nothing must arrive on a socket that never authenticated. The only
	// read outcome is a timeout or the handshake-deadline close.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var frame map[string]interface{}
	require.Error(t, conn.ReadJSON(&frame))
}

func TestOfflineDispatchesReconcileOnConnect(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	user := primitive.NewObjectID()
	ctx := context.Background()
	token := tokenFor(t, user)

	for i := 0; i < 3; i++ {
		_, err := env.notifs.Dispatch(ctx, user, models.NotifNewBooking, "Nova reserva", "detalhes", nil)
		require.NoError(t, err)
	}

	// Authoritative REST endpoints agree before any socket exists.
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/notifications/unread-count", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var countBody struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&countBody))
	assert.Equal(t, int64(3), countBody.Count)

	req, _ = http.NewRequest(http.MethodGet, env.server.URL+"/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []models.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 3)
	for _, n := range list {
		assert.False(t, n.Read)
	}
	assert.True(t, !list[0].CreatedAt.Before(list[2].CreatedAt), "list must be newest first")

	// The post-auth push carries the same authoritative count.
	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": token}))
	frame := readFrame(t, conn)
	assert.Equal(t, "auth_success", frame["type"])
	frame = readFrame(t, conn)
	assert.Equal(t, "unread_count", frame["type"])
	assert.Equal(t, float64(3), frame["count"])
}

func TestLivePushReachesAuthenticatedConnection(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	user := primitive.NewObjectID()

	conn := env.dial(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": tokenFor(t, user)}))
	readFrame(t, conn) // auth_success
	readFrame(t, conn) // initial unread_count

	require.Eventually(t, func() bool { return env.registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	_, err := env.notifs.Dispatch(context.Background(), user, models.NotifBookingStatus, "Reserva aceita", "corpo", nil)
	require.NoError(t, err)

	frame := readFrame(t, conn)
	require.Equal(t, "notification", frame["type"])
	data := frame["data"].(map[string]interface{})
	assert.Equal(t, "Reserva aceita", data["title"])
	assert.Equal(t, false, data["isRead"])

	frame = readFrame(t, conn)
	assert.Equal(t, "unread_count", frame["type"])
	assert.Equal(t, float64(1), frame["count"])
}
