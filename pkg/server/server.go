// Package server is the embed host: it serves the widget as an embeddable
// browser page, forwards widget submissions to the configured webhook, and
// pushes bot replies to open pages over a websocket.
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floatchat/floatchat/pkg/config"
	"github.com/floatchat/floatchat/pkg/logger"
	"github.com/floatchat/floatchat/pkg/webhook"
	"github.com/floatchat/floatchat/pkg/widget"
)

const (
	sessionCookie  = "floatchat_session"
	sessionTTL     = 24 * time.Hour
	requestTimeout = 120 * time.Second
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

type wsEvent struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Active  bool   `json:"active,omitempty"`
	Time    string `json:"time,omitempty"`
}

// Server hosts one widget instance for browser embedding.
type Server struct {
	cfg    config.ServerConfig
	widget *widget.Widget
	client *webhook.Client
	server *http.Server

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	writeMu  sync.Mutex
	history  map[string][]chatMessage // sessionId -> messages
	sessions map[string]time.Time     // auth token -> expiry
	conns    map[*websocket.Conn]struct{}

	unsub func()
}

func New(cfg config.ServerConfig, w *widget.Widget) *Server {
	s := &Server{
		cfg:      cfg,
		widget:   w,
		client:   webhook.NewClient(w.Config().APIURL),
		history:  make(map[string][]chatMessage),
		sessions: make(map[string]time.Time),
		conns:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	// Replies injected through the Go API reach every open page.
	s.unsub = w.Subscribe(func(ev widget.Event) {
		switch e := ev.(type) {
		case widget.MessageEvent:
			s.broadcast(wsEvent{
				Type:    "message",
				Role:    string(e.Message.Role),
				Content: e.Message.Content,
				Time:    e.Message.Time.Format("15:04:05"),
			})
		case widget.PendingEvent:
			s.broadcast(wsEvent{Type: "pending", Active: e.Active})
		}
	})
	return s
}

// Handler returns the HTTP routes. Exposed for tests and embedding into a
// larger mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.allowFrom(s.requireAuth(s.handlePage)))
	mux.HandleFunc("/widget/send", s.allowFrom(s.requireAuthAPI(s.handleSend)))
	mux.HandleFunc("/widget/history", s.allowFrom(s.requireAuthAPI(s.handleHistory)))
	mux.HandleFunc("/widget/events", s.allowFrom(s.requireAuthAPI(s.handleEvents)))
	mux.HandleFunc("/login", s.allowFrom(s.handleLogin))
	mux.HandleFunc("/logout", s.handleLogout)
	return mux
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}

	logger.Info("server", "embed host started", map[string]interface{}{
		"addr": addr,
		"auth": s.authEnabled(),
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server", "embed host error", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

// Stop shuts the server down and detaches from the widget.
func (s *Server) Stop(ctx context.Context) error {
	s.unsub()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// URL returns the address pages should open, substituting localhost for a
// wildcard bind.
func (s *Server) URL() string {
	host := s.cfg.Host
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, s.cfg.Port)
}

func (s *Server) authEnabled() bool {
	return s.cfg.Username != "" && s.cfg.Password != ""
}

func (s *Server) createSession() string {
	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)
	s.mu.Lock()
	s.sessions[token] = time.Now().Add(sessionTTL)
	s.mu.Unlock()
	return token
}

func (s *Server) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s.mu.RLock()
	expiry, ok := s.sessions[cookie.Value]
	s.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// allowFrom rejects clients outside the configured allow list. An empty
// list admits everyone.
func (s *Server) allowFrom(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.cfg.AllowFrom) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			allowed := false
			for _, a := range s.cfg.AllowFrom {
				if a == host {
					allowed = true
					break
				}
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() || s.validSession(r) {
			next(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func (s *Server) requireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() || s.validSession(r) {
			next(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() || s.validSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderLoginPage(w, "")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	} else {
		r.ParseForm()
		body.Username = r.FormValue("username")
		body.Password = r.FormValue("password")
	}

	userOK := subtle.ConstantTimeCompare([]byte(body.Username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(body.Password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		logger.Warn("server", "login failed", map[string]interface{}{"remote": r.RemoteAddr})
		w.WriteHeader(http.StatusUnauthorized)
		renderLoginPage(w, "Invalid username or password")
		return
	}

	token := s.createSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleSend accepts a widget payload from the page, forwards it to the
// configured webhook, and answers with the assistant reply.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Encoded attachments inflate roughly 4/3 over the configured limit.
	maxBody := s.widget.Config().MaxFileSize*2 + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var payload webhook.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.Action == "" {
		payload.Action = webhook.Action
	}
	if payload.Action != webhook.Action {
		http.Error(w, "unsupported action", http.StatusBadRequest)
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = s.widget.SessionID()
	}
	if payload.Empty() {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	s.record(payload.SessionID, chatMessage{
		Role:    "user",
		Content: payload.ChatInput,
		Time:    time.Now().Format("15:04:05"),
	})

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reply, err := s.client.Send(ctx, payload)
	if err != nil {
		logger.Error("server", "webhook forward failed", map[string]interface{}{
			"session_id": payload.SessionID,
			"error":      err.Error(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "chat backend unavailable"})
		return
	}

	s.record(payload.SessionID, chatMessage{
		Role:    "assistant",
		Content: reply,
		Time:    time.Now().Format("15:04:05"),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"reply": reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.widget.SessionID()
	}
	s.mu.RLock()
	msgs := s.history[sessionID]
	s.mu.RUnlock()
	if msgs == nil {
		msgs = []chatMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// handleEvents upgrades to a websocket that streams bot replies and
// typing-indicator changes to the page.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only detects closure; the page never sends.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcast(ev wsEvent) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	// Serialize writes; gorilla connections allow one concurrent writer.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			c.Close()
		}
	}
}

func (s *Server) record(sessionID string, m chatMessage) {
	s.mu.Lock()
	s.history[sessionID] = append(s.history[sessionID], m)
	s.mu.Unlock()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderWidgetPage(w, s.widget.Config())
}
