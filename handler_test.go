package livemark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livemark/internal/diff"
	"github.com/livefir/livemark/internal/render"
)

func newPreview(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()

	doc, err := New[string](render.NewHTML())
	require.NoError(t, err)
	t.Cleanup(doc.Close)

	h := NewHandler(doc, WithTitle("notes.md"))
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return h, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one reaches revision
func readFrame(t *testing.T, conn *websocket.Conn, revision uint64) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		require.Empty(t, frame.Error)
		if frame.Revision >= revision {
			return frame
		}
	}
}

func post(t *testing.T, url, body string) {
	t.Helper()

	resp, err := http.Post(url, "text/markdown", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHandler_StreamsOnlyNewBlocks(t *testing.T) {
	h, server := newPreview(t)
	conn := dial(t, server)

	post(t, server.URL+"/document", "# H\n\nP1")
	first := readFrame(t, conn, 1)
	require.Len(t, first.Order, 2)
	assert.Len(t, first.Blocks, 2)
	assert.Contains(t, first.Blocks[first.Order[0]], "<h1>H</h1>")

	post(t, server.URL+"/document/append", "\n\nP2")
	second := readFrame(t, conn, 2)
	require.Len(t, second.Order, 3)
	assert.Equal(t, first.Order, second.Order[:2])
	assert.Len(t, second.Blocks, 1, "only the appended block is sent")
	assert.Contains(t, second.Blocks[second.Order[2]], "P2")
	assert.Equal(t, diff.PatternAppend, second.Pattern)
	assert.Equal(t, 2, second.Stats.Reused)
	assert.Equal(t, 1, second.Stats.Rendered)

	assert.Equal(t, "# H\n\nP1\n\nP2", h.Text())
}

func TestHandler_NewClientReceivesFullView(t *testing.T) {
	h, server := newPreview(t)
	early := dial(t, server)

	h.Replace("# Title\n\none\n\ntwo")
	readFrame(t, early, 1)

	late := dial(t, server)
	frame := readFrame(t, late, 1)
	require.Len(t, frame.Order, 3)
	assert.Len(t, frame.Blocks, 3)
}

func TestHandler_BroadcastErrorDropsFailedClient(t *testing.T) {
	doc, err := New[string](render.NewHTML())
	require.NoError(t, err)
	t.Cleanup(doc.Close)

	var logs bytes.Buffer
	h := NewHandler(doc, WithHandlerLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	conns := make(chan *websocket.Conn, 2)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(server.Close)

	healthyPeer := dial(t, server)
	healthy := &client{conn: <-conns, sent: make(map[string]struct{})}
	t.Cleanup(func() { healthy.conn.Close() })

	dial(t, server)
	broken := &client{conn: <-conns, sent: make(map[string]struct{})}
	require.NoError(t, broken.conn.Close())

	h.addClient(healthy)
	h.addClient(broken)
	h.broadcastError(errors.New("parse exploded"))

	require.NoError(t, healthyPeer.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := healthyPeer.ReadMessage()
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "parse exploded", frame.Error)

	assert.Contains(t, logs.String(), "failed to send error frame")
	assert.Equal(t, 1, strings.Count(logs.String(), "failed to send error frame"))
}

func TestHandler_Page(t *testing.T) {
	_, server := newPreview(t)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>notes.md</title>")
	assert.Contains(t, string(body), "/ws")
}

func TestHandler_StatsAndMetrics(t *testing.T) {
	h, server := newPreview(t)
	conn := dial(t, server)

	h.Replace("# Stats\n\nbody")
	readFrame(t, conn, 1)

	resp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, uint64(1), stats.Revision)
	assert.Equal(t, 2, stats.Blocks)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "livemark_preview_clients 1")
	assert.Contains(t, string(body), `livemark_blocks_total{source="rendered"} 2`)
}

func TestHandler_RejectsUnknownMethod(t *testing.T) {
	_, server := newPreview(t)

	resp, err := http.Get(server.URL + "/document")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBlockKey(t *testing.T) {
	assert.Equal(t, "00000000000000ff", BlockKey(0xff))
}
