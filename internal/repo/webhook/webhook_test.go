package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/stretchr/testify/assert"
)

func TestDeliverRetriesTransientStatuses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := memstore.New()
	st.SetWebhooks("team-1", models.EventChatUpdate, []string{srv.URL})
	st.SetAuthToken("team-1", "secret")

	sink := NewSink(st)
	sink.Deliver(context.Background(), "team-1", &models.EventEnvelope{Event: models.EventChatUpdate})
	sink.Stop()

	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestDeliverGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	st := memstore.New()
	st.SetWebhooks("team-1", models.EventOpen, []string{srv.URL})

	sink := NewSink(st)
	sink.Deliver(context.Background(), "team-1", &models.EventEnvelope{Event: models.EventOpen})
	sink.Stop()

	assert.EqualValues(t, maxAttempts, atomic.LoadInt32(&hits))
}

func TestDeliverDoesNotRetryDefinitiveStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	st := memstore.New()
	st.SetWebhooks("team-1", models.EventOpen, []string{srv.URL})

	sink := NewSink(st)
	sink.Deliver(context.Background(), "team-1", &models.EventEnvelope{Event: models.EventOpen})
	sink.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestDeliverSkipsUnregisteredEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	st := memstore.New()
	st.SetWebhooks("team-1", models.EventOpen, []string{srv.URL})

	sink := NewSink(st)
	sink.Deliver(context.Background(), "team-1", &models.EventEnvelope{Event: models.EventChatUpdate})
	sink.Stop()

	time.Sleep(50 * time.Millisecond)
}
