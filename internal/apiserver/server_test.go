package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codex-monitor/go-monitor/internal/config"
	"github.com/codex-monitor/go-monitor/internal/engine"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/store"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
)

func init() { gin.SetMode(gin.TestMode) }

type nopRPC struct{ engine.RPC }

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := &config.Config{
		FollowUpBehavior:  "queue",
		ReviewDelivery:    "inline",
		ThreadSortKey:     "updated_at",
		ThreadPageLimit:   100,
		ThreadListTopSize: 20,
	}
	eng := engine.New(cfg, nopRPC{}, threadstate.NewStore(), store.New(nil, ""),
		[]engine.Workspace{{ID: "ws-1", Name: "repo", Path: "/repo"}})
	return NewServer(eng, NewMetrics(), 16), eng
}

func doGET(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestThreadRowsEndpoint(t *testing.T) {
	s, eng := newTestServer(t)
	eng.State().Dispatch(threadstate.SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     threadstate.SortByUpdatedAt,
		Threads:     []threadstate.ThreadSummary{{ID: "thread-1", Name: "one", UpdatedAt: 1}},
	})

	w := doGET(t, s, "/api/threads?workspace_id=ws-1")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 %d", w.Code)
	}
	var resp struct {
		Success bool               `json:"success"`
		Data    []engine.ThreadRow `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !resp.Success || len(resp.Data) != 1 || resp.Data[0].Thread.ID != "thread-1" {
		t.Fatalf("响应错误: %s", w.Body.String())
	}
}

func TestThreadRowsRequiresWorkspace(t *testing.T) {
	s, _ := newTestServer(t)
	if w := doGET(t, s, "/api/threads"); w.Code != http.StatusBadRequest {
		t.Fatalf("缺参数应 400, 实际 %d", w.Code)
	}
}

func TestEventTailEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.RecordEvent(events.Message{WorkspaceID: "ws-1", Method: "turn/started", Params: events.Params{"threadId": "thread-1"}})
	s.RecordDebug(engine.DebugEntry{Source: "error", Label: "thread/archive error", Payload: "boom"})

	w := doGET(t, s, "/api/events")
	var resp struct {
		Data []TailEntry `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("尾巴应有 2 条: %s", w.Body.String())
	}
	if resp.Data[0].Label != "turn/started" || resp.Data[0].Source != "event" {
		t.Fatalf("事件记录错误: %+v", resp.Data[0])
	}
	if resp.Data[1].Label != "thread/archive error" || resp.Data[1].Source != "error" {
		t.Fatalf("调试记录错误: %+v", resp.Data[1])
	}
}

func TestTailWrapsAround(t *testing.T) {
	tail := NewTail(3)
	for _, label := range []string{"a", "b", "c", "d"} {
		tail.Append("event", "", label, nil)
	}
	got := tail.List()
	if len(got) != 3 || got[0].Label != "b" || got[2].Label != "d" {
		t.Fatalf("环形覆盖错误: %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.metrics.EventRouted("turn/started")
	s.metrics.EventDropped("bogus/method")

	w := doGET(t, s, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `monitor_events_routed_total{method="turn/started"} 1`) {
		t.Fatalf("缺少路由计数: %s", body)
	}
	if !strings.Contains(body, `monitor_events_dropped_total{method="bogus/method"} 1`) {
		t.Fatalf("缺少丢弃计数: %s", body)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	if w := doGET(t, s, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("状态码 %d", w.Code)
	}
}
