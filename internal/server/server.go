package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// shutdownTimeout bounds how long Stop waits for in-flight HTTP
// requests to drain.
const shutdownTimeout = 5 * time.Second

// Server accepts WebSocket clients and routes their commands through a
// Handler. It owns no game state of its own.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	handler     *Handler
	httpServer  *http.Server
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServer creates a gateway server listening on addr.
func NewServer(addr string, handler *Handler, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		handler:     handler,
		httpServer:  &http.Server{Addr: addr},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start runs the server until the listener fails or Stop is called. A
// shutdown triggered by Stop is a clean return, not an error.
func (s *Server) Start() error {
	s.httpServer.Handler = s.Routes()
	s.logger.Info("starting gateway", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes returns the HTTP handler serving the gateway endpoints and
// starts the connection lifecycle loop.
func (s *Server) Routes() http.Handler {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Stop closes every connection, stops the listener and unblocks Start.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	// WebSocket connections are hijacked, so Shutdown only waits on plain
	// HTTP requests; the explicit closes above cover the rest.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.handler, s.logger)
	s.register <- client
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// ConnectedParticipants returns the named participants currently online.
func (s *Server) ConnectedParticipants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for conn := range s.connections {
		if name := conn.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}
