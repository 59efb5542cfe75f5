package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	inquiryhttp "github.com/aretw0/inquiry/pkg/adapters/http"
	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/aretw0/inquiry/pkg/pacing"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/aretw0/inquiry/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surveyDoc = `{
  "nodes": {
    "start": {"id": "start", "type": "start", "data": {}},
    "hello": {"id": "hello", "type": "information", "data": {"text": "Hi there"}},
    "mood":  {"id": "mood", "type": "question", "data": {"prompt": "Mood?", "answerKind": "rating-single", "options": ["low", "high"]}},
    "end":   {"id": "end", "type": "end", "data": {}}
  },
  "edges": [
    {"id": "e1", "source": "start", "target": "hello"},
    {"id": "e2", "source": "hello", "target": "mood"},
    {"id": "e3", "source": "mood", "target": "end"}
  ]
}`

const branchingDoc = `{
  "nodes": {
    "start": {"id": "start", "type": "start", "data": {}},
    "mood":  {"id": "mood", "type": "question", "data": {"prompt": "Mood?", "answerKind": "rating-single", "options": ["low", "high"]}},
    "route": {"id": "route", "type": "condition", "data": {"instructions": "otherwise -> end"}},
    "end":   {"id": "end", "type": "end", "data": {}}
  },
  "edges": [
    {"id": "e1", "source": "start", "target": "mood"},
    {"id": "e2", "source": "mood", "target": "route"},
    {"id": "e3", "source": "route", "target": "end"}
  ]
}`

func newTestServer(t *testing.T) (*httptest.Server, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	backend := kv.NewMemoryBackend(time.Minute)
	client := reasoning.NewClient(reasoning.NewLoopback(reasoning.NewRules()))
	t.Cleanup(func() { _ = client.Close() })

	sessions := session.NewManager(repo, backend,
		session.WithReasoning(client),
		session.WithPacingOptions(pacing.WithDelayFunc(func(pacing.Item) time.Duration { return 0 })))
	t.Cleanup(sessions.Close)

	srv := inquiryhttp.NewServer(repo, sessions, backend,
		inquiryhttp.WithReasoning(client),
		inquiryhttp.WithAutosaveQuiet(time.Hour),
		inquiryhttp.WithVersion("test"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close(context.Background())
	})
	return ts, repo
}

// testClient fails a request that stalls on a missing reasoning reply.
var testClient = &http.Client{Timeout: 10 * time.Second}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := testClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, string(body))
}

func TestGraph_PutGetValidate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/inquiries/survey/graph", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, http.MethodPut, ts.URL+"/inquiries/survey/graph", surveyDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"errors":[]}`, string(body))

	resp, body = do(t, http.MethodGet, ts.URL+"/inquiries/survey/graph", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	g, err := domain.DecodeGraph(body)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	resp, _ = do(t, http.MethodPut, ts.URL+"/inquiries/survey/graph", `{"nodes": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/inquiries/survey/validate", `{"nodes": {}, "edges": []}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "exactly one start node")
}

func TestSession_Flow(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := do(t, http.MethodPut, ts.URL+"/inquiries/survey/graph", surveyDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/inquiries/survey/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var state domain.TraversalState
	require.NoError(t, json.Unmarshal(body, &state))
	sid := state.SessionID

	resp, _ = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/begin", `{"name":"Ana","email":"bad"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/begin", `{"name":"Ana","email":"ana@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var step session.Step
	require.NoError(t, json.Unmarshal(body, &step))
	assert.Equal(t, "mood", step.State.CurrentNodeID)

	resp, _ = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/responses", `{"selectedRatings":["medium"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/responses", `{"selectedRatings":["high"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &step))
	assert.Equal(t, domain.PhaseTerminated, step.State.Phase)

	resp, _ = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/responses", `{"text":"more"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/inquiries/survey/responses", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var subs []domain.Submission
	require.NoError(t, json.Unmarshal(body, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, sid, subs[0].SessionID)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/sessions/"+sid, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/sessions/"+sid, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSession_ConditionInLaterRequest(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := do(t, http.MethodPut, ts.URL+"/inquiries/branching/graph", branchingDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/inquiries/branching/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var state domain.TraversalState
	require.NoError(t, json.Unmarshal(body, &state))
	sid := state.SessionID

	resp, body = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/begin", `{"name":"Ana","email":"ana@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	started := time.Now()
	resp, body = do(t, http.MethodPost, ts.URL+"/sessions/"+sid+"/responses", `{"selectedRatings":["low"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var step session.Step
	require.NoError(t, json.Unmarshal(body, &step))
	assert.Equal(t, domain.PhaseTerminated, step.State.Phase)
	assert.Less(t, time.Since(started), 5*time.Second, "the condition is resolved without waiting on a timeout")
}

func TestSession_UnknownInquiry(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, body := do(t, http.MethodPost, ts.URL+"/inquiries/ghost/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var state domain.TraversalState
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.NotFound)
}

func TestSession_Events(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := do(t, http.MethodPut, ts.URL+"/inquiries/survey/graph", surveyDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body := do(t, http.MethodPost, ts.URL+"/inquiries/survey/sessions", "")
	var state domain.TraversalState
	require.NoError(t, json.Unmarshal(body, &state))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+state.SessionID+"/events?types=message", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line, "connection is acknowledged before any update")

	resp, _ = do(t, http.MethodPost, ts.URL+"/sessions/"+state.SessionID+"/begin", `{"name":"Ana","email":"ana@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var contents []string
	for len(contents) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || strings.HasPrefix(data, "connected") {
			continue
		}
		var item pacing.Item
		require.NoError(t, json.Unmarshal([]byte(data), &item))
		contents = append(contents, item.Content)
	}
	assert.Equal(t, []string{"Hi there", "Mood?"}, contents)
}

func TestEditor_CommandsUndoPublish(t *testing.T) {
	ts, repo := newTestServer(t)
	base := ts.URL + "/inquiries/draft/editor"

	resp, body := do(t, http.MethodPost, base+"/commands", `{"op":"batch","commands":[
		{"op":"addNode","node":{"id":"start","type":"start","data":{}}},
		{"op":"addNode","node":{"id":"end","type":"end","data":{}}},
		{"op":"addEdge","edge":{"id":"e1","source":"start","target":"end"}}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"canUndo":true`)

	resp, body = do(t, http.MethodPost, base+"/commands", `{"op":"addNode","node":{"id":"start","type":"start","data":{}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, _ = do(t, http.MethodPost, base+"/commands", `{"op":"removeEdge","id":"e1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/publish", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), `"errors"`)

	resp, _ = do(t, http.MethodPost, base+"/undo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/publish", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	g, err := repo.LoadGraph(context.Background(), "draft")
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)
}

func TestEditor_AutoFix(t *testing.T) {
	ts, _ := newTestServer(t)
	base := ts.URL + "/inquiries/draft/editor"

	resp, _ := do(t, http.MethodPost, base+"/commands", `{"op":"addNode","node":{"id":"start","type":"start","data":{}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	started := time.Now()
	resp, body := do(t, http.MethodPost, base+"/autofix", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Less(t, time.Since(started), 5*time.Second, "the editor opened in an earlier request still reaches the fixer")
	var view struct {
		Report struct {
			Errors []string `json:"errors"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Empty(t, view.Report.Errors)
}

func TestSummaries(t *testing.T) {
	ts, _ := newTestServer(t)
	url := ts.URL + "/inquiries/survey/summaries"

	resp, _ := do(t, http.MethodGet, url+"/mood", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, url+"/mood", `{"summary":"Mostly high"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, url+"/mood", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"summary":"Mostly high"}`, string(body))

	_, body = do(t, http.MethodGet, url, "")
	assert.JSONEq(t, `{"mood":"Mostly high"}`, string(body))

	_, body = do(t, http.MethodGet, ts.URL+"/inquiries/other/summaries", "")
	assert.JSONEq(t, `{}`, string(body), "summaries are scoped per inquiry")
}

func TestCORS_Preflight(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/healthz", bytes.NewReader(nil))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
