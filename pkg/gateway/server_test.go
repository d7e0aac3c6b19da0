package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/fiftplay/pkg/linkcodec"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/harun/fiftplay/pkg/snippets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireMessage holds either a response or a push
type wireMessage struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	nextID int
	pushes []wireMessage
}

func newTestServer(t *testing.T, withSnippets bool) (*Server, *httptest.Server) {
	t.Helper()

	cfg := Config{Logger: zerolog.Nop()}
	if withSnippets {
		store, err := snippets.New(snippets.Config{
			DBPath: filepath.Join(t.TempDir(), "snippets.db"),
			Logger: zerolog.Nop(),
		})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		cfg.Snippets = store
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, query url.Values) *testClient {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn}
	c.waitPush(EventSessionReady)
	return c
}

func (c *testClient) read() wireMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wireMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// waitPush reads until the named push arrives, keeping every push seen
func (c *testClient) waitPush(event string) wireMessage {
	c.t.Helper()
	for {
		msg := c.read()
		if msg.Event != "" {
			c.pushes = append(c.pushes, msg)
		}
		if msg.Event == event {
			return msg
		}
	}
}

// call sends a request and reads until its response. Pushes that arrive
// first are recorded.
func (c *testClient) call(method string, params interface{}) wireMessage {
	c.t.Helper()
	c.nextID++
	id := "req-" + strings.Repeat("x", c.nextID)

	req := map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	require.NoError(c.t, c.conn.WriteJSON(req))

	for {
		msg := c.read()
		if msg.Event != "" {
			c.pushes = append(c.pushes, msg)
			continue
		}
		require.Equal(c.t, id, msg.ID)
		return msg
	}
}

func (c *testClient) state(method string, params interface{}) StateView {
	c.t.Helper()
	msg := c.call(method, params)
	require.Nil(c.t, msg.Error, "unexpected error from %s", method)
	var view StateView
	require.NoError(c.t, json.Unmarshal(msg.Result, &view))
	return view
}

func (c *testClient) pushEvents() []string {
	var events []string
	for _, p := range c.pushes {
		events = append(events, p.Event)
	}
	return events
}

func filenames(view StateView) []string {
	var names []string
	for _, f := range view.Files {
		names = append(names, f.Filename)
	}
	return names
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsDisabled(t *testing.T) {
	srv, err := NewServer(Config{DisableMetrics: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Methods(t *testing.T) {
	srv, _ := newTestServer(t, false)

	assert.Equal(t, []string{
		"snippets.open",
		"snippets.share",
		"workspace.addFile",
		"workspace.cancelDelete",
		"workspace.clearErrors",
		"workspace.confirmDelete",
		"workspace.edit",
		"workspace.renameFile",
		"workspace.requestDelete",
		"workspace.serialize",
		"workspace.setActive",
		"workspace.state",
	}, srv.Methods())
}

func TestSession_DefaultWorkspace(t *testing.T) {
	srv, ts := newTestServer(t, false)
	c := dial(t, ts, nil)

	view := c.state("workspace.state", nil)
	assert.Equal(t, []string{"main.fif"}, filenames(view))
	assert.Equal(t, "main.fif", view.MainFile)
	assert.Equal(t, "main.fif", view.ActiveFile)
	assert.Contains(t, c.pushEvents(), EventModelCreated)

	require.Len(t, srv.Sessions(), 1)
	assert.Equal(t, 1, srv.Sessions()[0].Files)
}

func TestSession_InitialStateFromLink(t *testing.T) {
	_, ts := newTestServer(t, false)
	link, err := linkcodec.Marshal([]linkcodec.Entry{{Filename: "a.fif", Code: "A"}, {Filename: "b.fif", Code: "B"}})
	require.NoError(t, err)

	c := dial(t, ts, url.Values{"state": {link}})
	view := c.state("workspace.state", nil)
	assert.Equal(t, []string{"a.fif", "b.fif"}, filenames(view))
	assert.Equal(t, "a.fif", view.MainFile)
}

func TestSession_InvalidInitialState(t *testing.T) {
	_, ts := newTestServer(t, false)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?state=" + url.QueryEscape("#"+linkcodec.Encode(`[1]`))
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSession_WorkspaceOperations(t *testing.T) {
	_, ts := newTestServer(t, false)
	c := dial(t, ts, nil)

	view := c.state("workspace.addFile", map[string]interface{}{"filename": "lib.fif", "code": "{ } : nop"})
	assert.Equal(t, []string{"main.fif", "lib.fif"}, filenames(view))
	assert.Equal(t, "lib.fif", view.ActiveFile)
	assert.Contains(t, c.pushEvents(), EventWorkspaceChanged)

	c.pushes = nil
	view = c.state("workspace.renameFile", map[string]interface{}{"oldFilename": "lib.fif", "newFilename": "util.fif"})
	assert.Equal(t, []string{"main.fif", "util.fif"}, filenames(view))
	assert.Contains(t, c.pushEvents(), EventModelDisposed)
	assert.Contains(t, c.pushEvents(), EventModelCreated)

	view = c.state("workspace.setActive", map[string]interface{}{"filename": "main.fif"})
	assert.Equal(t, "main.fif", view.ActiveFile)

	msg := c.call("workspace.setActive", map[string]interface{}{"filename": "nope.fif"})
	require.NotNil(t, msg.Error)
	assert.Equal(t, FileNotFound, msg.Error.Code)

	msg = c.call("workspace.edit", map[string]interface{}{"filename": "util.fif", "code": "1 2 + ."})
	require.Nil(t, msg.Error)
	view = c.state("workspace.state", nil)
	assert.Equal(t, "1 2 + .", view.Files[1].Code)

	msg = c.call("workspace.serialize", nil)
	require.Nil(t, msg.Error)
	var serialized map[string]string
	require.NoError(t, json.Unmarshal(msg.Result, &serialized))
	entries, err := linkcodec.Unmarshal(serialized["link"])
	require.NoError(t, err)
	assert.Equal(t, "util.fif", entries[1].Filename)
	assert.Equal(t, "1 2 + .", entries[1].Code)
}

func TestSession_RenameErrors(t *testing.T) {
	_, ts := newTestServer(t, false)
	c := dial(t, ts, nil)

	msg := c.call("workspace.renameFile", map[string]interface{}{"oldFilename": "main.fif", "newFilename": ""})
	require.NotNil(t, msg.Error)
	assert.Equal(t, RenameRejected, msg.Error.Code)
	assert.Equal(t, `Cannot rename "main.fif" to ""`, msg.Error.Message)

	view := c.state("workspace.state", nil)
	assert.Equal(t, []string{`Cannot rename "main.fif" to ""`}, view.Errors)

	view = c.state("workspace.clearErrors", nil)
	assert.Empty(t, view.Errors)
}

func TestSession_TwoPhaseDelete(t *testing.T) {
	_, ts := newTestServer(t, false)
	c := dial(t, ts, nil)
	c.state("workspace.addFile", map[string]interface{}{"filename": "lib.fif"})

	msg := c.call("workspace.requestDelete", map[string]interface{}{"filename": "lib.fif"})
	require.Nil(t, msg.Error)
	var pending PendingDeleteView
	require.NoError(t, json.Unmarshal(msg.Result, &pending))
	assert.Equal(t, "Are you sure to delete lib.fif?", pending.Prompt)

	view := c.state("workspace.state", nil)
	assert.Len(t, view.Files, 2)

	msg = c.call("workspace.cancelDelete", map[string]interface{}{"id": pending.ID})
	require.Nil(t, msg.Error)

	msg = c.call("workspace.confirmDelete", map[string]interface{}{"id": pending.ID})
	require.NotNil(t, msg.Error)
	assert.Equal(t, UnknownDelete, msg.Error.Code)

	msg = c.call("workspace.requestDelete", map[string]interface{}{"filename": "lib.fif"})
	require.NoError(t, json.Unmarshal(msg.Result, &pending))
	view = c.state("workspace.confirmDelete", map[string]interface{}{"id": pending.ID})
	assert.Equal(t, []string{"main.fif"}, filenames(view))
	assert.Equal(t, "main.fif", view.ActiveFile)
}

func TestSession_SnippetsDisabled(t *testing.T) {
	_, ts := newTestServer(t, false)
	c := dial(t, ts, nil)

	msg := c.call("snippets.share", nil)
	require.NotNil(t, msg.Error)
	assert.Equal(t, FeatureDisabled, msg.Error.Code)
}

func TestSession_ShareAndOpen(t *testing.T) {
	_, ts := newTestServer(t, true)
	author := dial(t, ts, nil)
	author.state("workspace.addFile", map[string]interface{}{"filename": "shared.fif", "code": "42 ."})

	msg := author.call("snippets.share", nil)
	require.Nil(t, msg.Error)
	var shared ShareResult
	require.NoError(t, json.Unmarshal(msg.Result, &shared))
	assert.NotEmpty(t, shared.ID)
	assert.True(t, strings.HasPrefix(shared.Link, "#"))

	reader := dial(t, ts, nil)
	view := reader.state("snippets.open", map[string]interface{}{"id": shared.ID})
	assert.Equal(t, []string{"main.fif", "shared.fif"}, filenames(view))
	assert.Equal(t, "42 .", view.Files[1].Code)

	direct := dial(t, ts, url.Values{"snippet": {shared.ID}})
	view = direct.state("workspace.state", nil)
	assert.Equal(t, []string{"main.fif", "shared.fif"}, filenames(view))

	msg = reader.call("snippets.open", map[string]interface{}{"id": "missing"})
	require.NotNil(t, msg.Error)
	assert.Equal(t, SnippetNotFound, msg.Error.Code)
}

func TestSession_ReplaceRecreatesModels(t *testing.T) {
	welcome, err := playground.NewStore(playground.StoreOptions{})
	require.NoError(t, err)
	sess, err := newSession(nil, welcome, "127.0.0.1", nil, zerolog.Nop())
	require.NoError(t, err)
	defer sess.Close()

	scratch := sess.Surface().CreateOrReuseModel("inmemory://model/1", playground.LanguagePlainText, "scratch")
	require.NoError(t, sess.Surface().Edit("file:///main.fif", "edited in the old workspace"))

	link, err := linkcodec.Marshal([]linkcodec.Entry{{Filename: "main.fif", Code: "1 2 + ."}})
	require.NoError(t, err)
	opened, err := playground.NewStore(playground.StoreOptions{SerializedState: link})
	require.NoError(t, err)
	require.NoError(t, sess.Replace(opened))

	model, ok := sess.Surface().GetModel("file:///main.fif")
	require.True(t, ok)
	code, _ := opened.Code("main.fif")
	assert.Equal(t, "1 2 + .", code)
	assert.Equal(t, code, model.Content())

	kept, ok := sess.Surface().GetModel("inmemory://model/1")
	require.True(t, ok)
	assert.Same(t, scratch, kept)
}

func TestSession_ProtocolErrors(t *testing.T) {
	_, ts := newTestServer(t, false)
	c := dial(t, ts, nil)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	msg := c.read()
	for msg.Event != "" {
		msg = c.read()
	}
	require.NotNil(t, msg.Error)
	assert.Equal(t, ParseError, msg.Error.Code)

	msg = c.call("workspace.unknown", nil)
	require.NotNil(t, msg.Error)
	assert.Equal(t, MethodNotFound, msg.Error.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv, err := NewServer(Config{Host: "127.0.0.1", Port: 0, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	require.NotEmpty(t, srv.Addr())

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, _, err = websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	assert.Error(t, err)
}

func TestServer_CheckOrigin(t *testing.T) {
	srv, err := NewServer(Config{AllowedOrigins: []string{"https://play.example"}, Logger: zerolog.Nop()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://play.example")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, srv.checkOrigin(req))
}
