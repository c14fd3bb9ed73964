package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/protocol"
	"github.com/zot/bootconfd/internal/snapshot"
)

// Server wires the protocol handler to the packet socket and the
// optional WebSocket endpoint.
type Server struct {
	cfg        *config.Config
	handler    *protocol.Handler
	socket     *PacketSocket
	wsEndpoint *WebSocketEndpoint
	httpServer *http.Server
}

// New creates a server over the given snapshot service.
func New(cfg *config.Config, svc *snapshot.Service) *Server {
	handler := protocol.NewHandler(cfg, svc)

	s := &Server{
		cfg:        cfg,
		handler:    handler,
		wsEndpoint: NewWebSocketEndpoint(cfg, handler),
	}
	s.socket = NewPacketSocket(cfg, handler)
	return s
}

// Start starts the packet socket and, when a port is configured, the
// WebSocket listener.
func (s *Server) Start() error {
	if err := s.socket.Listen(); err != nil {
		return fmt.Errorf("failed to start client socket: %w", err)
	}
	s.cfg.Log(0, "client socket listening on %s", s.socket.SocketPath())

	if s.cfg.Server.Port == 0 {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", s.wsEndpoint)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		s.cfg.Log(0, "WebSocket endpoint listening on %s", addr)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.cfg.Log(0, "HTTP server error: %v", err)
		}
	}()

	return nil
}

// NotifyFileChanged pushes the zero-payload fileChanged notification
// to every connected client on both transports.
func (s *Server) NotifyFileChanged() {
	msg, err := protocol.NewMessage(protocol.MsgFileChanged, nil)
	if err != nil {
		return
	}

	s.cfg.Log(1, "broadcasting fileChanged")
	s.socket.Broadcast(msg)
	s.wsEndpoint.Broadcast(msg)
}

// Handler returns the protocol handler.
func (s *Server) Handler() *protocol.Handler {
	return s.handler
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsEndpoint.CloseAll()

	if s.socket != nil {
		s.socket.Close()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
