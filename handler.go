package livemark

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livefir/livemark/internal/diff"
	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/rendercache"
)

//go:embed preview.html
var previewHTML string

var previewTemplate = template.Must(template.New("preview").Parse(previewHTML))

const (
	writeTimeout = 10 * time.Second

	// maxBodySize bounds POSTed document text
	maxBodySize = 4 << 20
)

// HandlerConfig configures a Handler
type HandlerConfig struct {
	Title    string
	Upgrader *websocket.Upgrader
	Logger   *slog.Logger
}

// HandlerOption is a functional option for configuring a Handler
type HandlerOption func(*HandlerConfig)

// WithTitle sets the preview page title
func WithTitle(title string) HandlerOption {
	return func(c *HandlerConfig) {
		c.Title = title
	}
}

// WithUpgrader sets a custom WebSocket upgrader
func WithUpgrader(upgrader *websocket.Upgrader) HandlerOption {
	return func(c *HandlerConfig) {
		c.Upgrader = upgrader
	}
}

// WithHandlerLogger sets the handler's logger
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		c.Logger = logger
	}
}

// Frame is the message pushed to preview clients after every update.
// Blocks carries HTML only for keys the client has not received yet.
type Frame struct {
	Revision uint64            `json:"revision"`
	Pattern  diff.Pattern      `json:"pattern"`
	Order    []string          `json:"order"`
	Blocks   map[string]string `json:"blocks"`
	Stats    FrameStats        `json:"stats"`
	Error    string            `json:"error,omitempty"`
}

// FrameStats is the per-update statistics shown by the preview page
type FrameStats struct {
	Reused       int     `json:"reused"`
	Rendered     int     `json:"rendered"`
	HitRate      float64 `json:"hit_rate"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Handler serves a live HTML preview of a document over WebSocket
type Handler struct {
	doc    *Document[string]
	router chi.Router
	config HandlerConfig
	logger *slog.Logger

	// texts carries the newest text to the Run loop; it holds at most one
	texts chan string

	textMu sync.Mutex
	text   string

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

// client is one connected preview page
type client struct {
	conn *websocket.Conn

	mu          sync.Mutex
	sent        map[string]struct{}
	fingerprint rendercache.Fingerprint
	revision    uint64
}

// NewHandler creates a preview handler for doc
func NewHandler(doc *Document[string], opts ...HandlerOption) *Handler {
	config := HandlerConfig{
		Title: "livemark",
		Upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = doc.logger
	}

	h := &Handler{
		doc:     doc,
		config:  config,
		logger:  config.Logger,
		texts:   make(chan string, 1),
		clients: make(map[*client]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", h.handlePage)
	r.Get("/ws", h.handleWebSocket)
	r.Post("/document", h.handleReplace)
	r.Post("/document/append", h.handleAppend)
	r.Get("/stats", h.handleStats)
	r.Handle("/metrics", promhttp.HandlerFor(doc.Metrics().Registry(), promhttp.HandlerOpts{}))
	h.router = r

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Start runs the document's update loop and broadcasts every view to the
// connected clients. It blocks until ctx ends.
func (h *Handler) Start(ctx context.Context) {
	h.logger.Info("preview started")
	defer h.logger.Info("preview stopped")

	for update := range h.doc.Run(ctx, h.texts) {
		if update.Err != nil {
			h.logger.Warn("update failed", "generation", update.Generation, "error", update.Err)
			h.broadcastError(update.Err)
			continue
		}
		h.broadcast(update.View)
	}
}

// Replace sets the document text
func (h *Handler) Replace(text string) {
	h.textMu.Lock()
	defer h.textMu.Unlock()

	h.text = text
	h.publish(text)
}

// Append adds chunk to the end of the document text
func (h *Handler) Append(chunk string) {
	h.textMu.Lock()
	defer h.textMu.Unlock()

	h.text += chunk
	h.publish(h.text)
}

// Text returns the current document text
func (h *Handler) Text() string {
	h.textMu.Lock()
	defer h.textMu.Unlock()
	return h.text
}

// publish replaces any text the Run loop has not picked up yet; callers
// hold textMu.
func (h *Handler) publish(text string) {
	for {
		select {
		case h.texts <- text:
			return
		default:
		}
		select {
		case <-h.texts:
		default:
		}
	}
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Title, Socket string }{Title: h.config.Title, Socket: "/ws"}
	if err := previewTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render preview page", "error", err)
	}
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.Replace(body)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.Append(body)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return "", false
	}
	return string(data), true
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.doc.Stats()); err != nil {
		h.logger.Error("failed to encode stats", "error", err)
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.config.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, sent: make(map[string]struct{})}
	h.addClient(c)
	defer h.removeClient(c)

	h.logger.Info("client connected", "remote", conn.RemoteAddr().String())

	if view := h.doc.View(); view != nil {
		if err := h.send(c, view); err != nil {
			h.logger.Warn("failed to send initial view", "error", err)
			return
		}
	}

	// Clients never send anything meaningful; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket error", "error", err)
			}
			return
		}
	}
}

func (h *Handler) addClient(c *client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
	h.doc.metrics.IncrementClientConnected()
}

func (h *Handler) removeClient(c *client) {
	h.clientsMu.Lock()
	delete(h.clients, c)
	h.clientsMu.Unlock()
	h.doc.metrics.IncrementClientDisconnected()
	h.logger.Info("client disconnected", "remote", c.conn.RemoteAddr().String())
}

func (h *Handler) snapshot() []*client {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Handler) broadcast(view *View[string]) {
	for _, c := range h.snapshot() {
		if err := h.send(c, view); err != nil {
			h.logger.Warn("failed to send frame", "remote", c.conn.RemoteAddr().String(), "error", err)
			c.conn.Close()
		}
	}
}

func (h *Handler) broadcastError(cause error) {
	data, err := json.Marshal(Frame{Error: cause.Error()})
	if err != nil {
		h.logger.Error("failed to marshal error frame", "error", err)
		return
	}
	for _, c := range h.snapshot() {
		c.mu.Lock()
		err := c.write(data)
		c.mu.Unlock()
		if err != nil {
			h.logger.Warn("failed to send error frame", "remote", c.conn.RemoteAddr().String(), "error", err)
			c.conn.Close()
		}
	}
}

// send pushes view to c, including only blocks c does not hold
func (h *Handler) send(c *client, view *View[string]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A broadcast may have overtaken the initial view
	if view.Revision <= c.revision {
		return nil
	}

	if c.fingerprint != view.Fingerprint {
		c.sent = make(map[string]struct{})
		c.fingerprint = view.Fingerprint
	}

	frame := Frame{
		Revision: view.Revision,
		Pattern:  view.Pattern,
		Order:    make([]string, len(view.Blocks)),
		Blocks:   make(map[string]string),
		Stats: FrameStats{
			Reused:       view.Reused,
			Rendered:     view.Rendered,
			HitRate:      view.HitRate,
			CacheHitRate: h.doc.cache.HitRate(),
		},
	}

	held := make(map[string]struct{}, len(view.Blocks))
	for i, b := range view.Blocks {
		key := BlockKey(b.Hash)
		frame.Order[i] = key
		held[key] = struct{}{}
		if _, ok := c.sent[key]; !ok {
			frame.Blocks[key] = b.Artifact
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if err := c.write(data); err != nil {
		return err
	}

	// The page keeps only blocks named in the latest order
	c.sent = held
	c.revision = view.Revision
	h.doc.metrics.IncrementFrameSent()
	return nil
}

// write sends one text message; callers hold c.mu
func (c *client) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// BlockKey is the identifier of a block in preview frames
func BlockKey(h mdtree.Hash) string {
	return fmt.Sprintf("%016x", uint64(h))
}

