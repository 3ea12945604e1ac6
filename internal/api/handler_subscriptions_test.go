package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/store"
)

// fakeStore keeps subscriptions in memory and accepts every other write.
type fakeStore struct {
	subs    map[string]model.PushSubscription
	commits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: map[string]model.PushSubscription{}}
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, since time.Time) (state.Snapshot, error) {
	return state.Snapshot{}, nil
}

func (f *fakeStore) CommitTasks(ctx context.Context, tasks []model.HousekeepingTask, rooms []model.Room) error {
	f.commits++
	return nil
}

func (f *fakeStore) UpsertRoom(ctx context.Context, room model.Room) error { return nil }

func (f *fakeStore) CommitInventory(ctx context.Context, c store.InventoryCommit) error {
	f.commits++
	return nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, b model.Booking) error { return nil }

func (f *fakeStore) UpdateBooking(ctx context.Context, b model.Booking) error { return nil }

func (f *fakeStore) ListTransactions(ctx context.Context, tf store.TransactionFilter) ([]model.InventoryTransaction, error) {
	return nil, nil
}

func (f *fakeStore) SaveSubscription(ctx context.Context, sub model.PushSubscription) error {
	f.subs[sub.Endpoint] = sub
	return nil
}

func (f *fakeStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	sub, ok := f.subs[endpoint]
	if !ok {
		return sub, errs.NotFound("subscription", endpoint)
	}
	return sub, nil
}

func (f *fakeStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	delete(f.subs, endpoint)
	return nil
}

func (f *fakeStore) SubscriptionsFor(ctx context.Context, staffName string) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, s := range f.subs {
		if s.StaffName == staffName {
			out = append(out, s)
		}
	}
	return out, nil
}

func setupSubscriptionRouter(s *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(Deps{
		Store: s,
		State: state.NewStore(state.Snapshot{Staff: []model.Staff{{Name: "Lan", Role: model.RoleHousekeeping, Active: true}}}),
	})
	r.GET("/api/subscriptions", handler.GetSubscription)
	r.PUT("/api/subscriptions", handler.PutSubscription)
	r.DELETE("/api/subscriptions", handler.DeleteSubscription)
	r.GET("/api/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestPutSubscription(t *testing.T) {
	router := setupSubscriptionRouter(newFakeStore())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := newFakeStore()
	router := setupSubscriptionRouter(s)
	endpoint := "https://push.example.com/send/abc%3D%3D"

	t.Run("unknown staff is refused", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/subscriptions", jsonBody(t, gin.H{
			"endpoint": endpoint, "p256dh": "k", "auth": "a", "staff_name": "Nobody",
		}))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, s.subs)
	})

	t.Run("register", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/subscriptions", jsonBody(t, gin.H{
			"endpoint": endpoint, "p256dh": "k", "auth": "a", "staff_name": "Lan",
		}))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Lan", s.subs[endpoint].StaffName)
	})

	t.Run("lookup keeps the endpoint undecoded", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint="+endpoint, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"staff_name":"Lan"}`, w.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/subscriptions", jsonBody(t, gin.H{"endpoint": endpoint}))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/api/subscriptions?endpoint="+endpoint, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetVAPIDPublicKeyUnconfigured(t *testing.T) {
	router := setupSubscriptionRouter(newFakeStore())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
