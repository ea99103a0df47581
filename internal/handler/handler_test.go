package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/code-100-precent/LingLine/pkg/callflow"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/code-100-precent/LingLine/pkg/middleware"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalls struct {
	mu     sync.Mutex
	events []callflow.Event
}

func (f *fakeCalls) Dispatch(_ context.Context, ev callflow.Event) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return "20240101_100000.000000000"
}

func (f *fakeCalls) Active() int64 { return int64(len(f.events)) }

type fakeAgent struct{}

func (fakeAgent) Status() useragent.Status {
	return useragent.Status{State: useragent.StateRegistered, PID: 42}
}

type fakeNotifier struct{ messages []string }

func (n *fakeNotifier) Text(_ context.Context, message string, _ notification.Format) {
	n.messages = append(n.messages, message)
}

func newRouter(t *testing.T, token string) (*gin.Engine, *fakeCalls, *fakeNotifier) {
	gin.SetMode(gin.TestMode)
	mgr, err := middleware.NewMiddlewareManager(middleware.Config{WebhookToken: token})
	require.NoError(t, err)

	calls := &fakeCalls{}
	notifier := &fakeNotifier{}
	engine := gin.New()
	NewHandlers(Options{
		APIPrefix:     "/api",
		MonitorPrefix: "/metrics",
		Info:          Info{Name: "LingLine", TTS: "none", STT: "openai", SIPIdentity: "sip:100@pbx"},
		Calls:         calls,
		Agent:         fakeAgent{},
		Notifier:      notifier,
		Middleware:    mgr,
		Metrics:       metrics.New(),
	}).Register(engine)
	return engine, calls, notifier
}

func post(engine *gin.Engine, path, body, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestIncomingCallAccepted(t *testing.T) {
	engine, calls, _ := newRouter(t, "")
	w := post(engine, "/api/call/incoming",
		`{"caller":"+71234567890","to":"+7999","timestamp":"2024-01-01T10:00:00","line":2}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Code int               `json:"code"`
		Msg  string            `json:"msg"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 200, got.Code)
	assert.Equal(t, "accepted", got.Msg)
	assert.Equal(t, "20240101_100000.000000000", got.Data["call_id"])

	require.Len(t, calls.events, 1)
	ev := calls.events[0]
	assert.Equal(t, "+71234567890", ev.Caller)
	assert.Equal(t, "+7999", ev.Callee)
	assert.Equal(t, "2024-01-01T10:00:00", ev.Timestamp)
	assert.EqualValues(t, 2, ev.Payload["line"])
}

func TestIncomingCallAuth(t *testing.T) {
	engine, calls, notifier := newRouter(t, "s3cret")

	w := post(engine, "/api/call/incoming", `{"caller":"1"}`, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(engine, "/api/call/incoming", `{"caller":"1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(engine, "/api/call", `{"phone_number":"1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, calls.events, "rejected requests have no side effects")
	assert.Empty(t, notifier.messages)

	w = post(engine, "/api/call/incoming", `{"caller":"1"}`, "Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, calls.events, 1)
}

func TestIncomingCallBadPayload(t *testing.T) {
	engine, calls, _ := newRouter(t, "")
	for _, body := range []string{"", "not json", "[1,2]", "null"} {
		w := post(engine, "/api/call/incoming", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, calls.events)

	// missing fields are allowed, the session fills them in
	w := post(engine, "/api/call/incoming", `{}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMakeCallNotifies(t *testing.T) {
	engine, calls, notifier := newRouter(t, "")

	w := post(engine, "/api/call", `{"phone_number":"+7999"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Calling +7999")
	assert.Equal(t, []string{"Initiating call to +7999"}, notifier.messages)
	assert.Empty(t, calls.events)

	w = post(engine, "/api/call", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	engine, _, _ := newRouter(t, "")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data struct {
			TTS         string           `json:"tts"`
			STT         string           `json:"stt"`
			SIPIdentity string           `json:"sip_identity"`
			Agent       useragent.Status `json:"agent"`
			ActiveCalls int64            `json:"active_calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "none", got.Data.TTS)
	assert.Equal(t, "openai", got.Data.STT)
	assert.Equal(t, "sip:100@pbx", got.Data.SIPIdentity)
	assert.Equal(t, useragent.StateRegistered, got.Data.Agent.State)
	assert.Equal(t, 42, got.Data.Agent.PID)
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _, _ := newRouter(t, "")
	post(engine, "/api/call/incoming", `{"caller":"1"}`, "")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lingline_http_requests_total{endpoint="/api/call/incoming",method="POST",status="200"} 1`)
}
