// Package server implements the daemon's client communication layer.
package server

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"

	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/protocol"
)

const maxPacketSize = 10 * 1024 * 1024

// PacketSocket serves the client API over a unix socket. Messages and
// responses are JSON payloads framed by a 4-byte big-endian length
// prefix.
type PacketSocket struct {
	cfg         *config.Config
	socketPath  string
	listener    net.Listener
	handler     *protocol.Handler
	connections map[string]net.Conn
	closed      bool
	mu          sync.RWMutex
}

// NewPacketSocket creates a new packet socket server.
func NewPacketSocket(cfg *config.Config, handler *protocol.Handler) *PacketSocket {
	return &PacketSocket{
		cfg:         cfg,
		socketPath:  cfg.Server.Socket,
		handler:     handler,
		connections: make(map[string]net.Conn),
	}
}

// Listen starts listening on the socket.
func (ps *PacketSocket) Listen() error {
	// Remove a stale socket file from a previous run
	os.Remove(ps.socketPath)

	listener, err := net.Listen("unix", ps.socketPath)
	if err != nil {
		return err
	}
	ps.listener = listener

	go ps.acceptLoop()
	return nil
}

// acceptLoop accepts incoming connections.
func (ps *PacketSocket) acceptLoop() {
	for {
		conn, err := ps.listener.Accept()
		if err != nil {
			ps.mu.RLock()
			closed := ps.closed
			ps.mu.RUnlock()
			if closed {
				return
			}
			ps.cfg.Log(0, "accept error: %v", err)
			continue
		}

		go ps.handleConnection(conn)
	}
}

// handleConnection serves one client connection until EOF or error.
func (ps *PacketSocket) handleConnection(conn net.Conn) {
	connID := "client-" + generateConnectionID()

	ps.mu.Lock()
	ps.connections[connID] = conn
	ps.mu.Unlock()

	ps.cfg.Log(1, "client connected: %s", connID)

	defer func() {
		ps.mu.Lock()
		delete(ps.connections, connID)
		ps.mu.Unlock()
		conn.Close()
		ps.cfg.Log(1, "client disconnected: %s", connID)
	}()

	reader := bufio.NewReader(conn)
	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(reader, lenBuf); err != nil {
			if err != io.EOF {
				ps.cfg.Log(0, "read length error: %v", err)
			}
			return
		}

		length := binary.BigEndian.Uint32(lenBuf)
		if length > maxPacketSize {
			ps.cfg.Log(0, "message too large: %d bytes", length)
			return
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			ps.cfg.Log(0, "read payload error: %v", err)
			return
		}

		msg, err := protocol.ParseMessage(payload)
		if err != nil {
			ps.cfg.Log(0, "parse message error: %v", err)
			ps.writePacket(conn, protocol.Err(err))
			continue
		}

		ps.writePacket(conn, ps.handler.HandleMessage(msg))
	}
}

// writePacket writes a length-prefixed JSON value to the connection.
func (ps *PacketSocket) writePacket(conn net.Conn, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}

	_, err = conn.Write(data)
	return err
}

// Broadcast sends a message to every connected client.
func (ps *PacketSocket) Broadcast(msg *protocol.Message) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, conn := range ps.connections {
		ps.writePacket(conn, msg)
	}
	return nil
}

// Close closes the socket and all connections.
func (ps *PacketSocket) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.closed = true
	for _, conn := range ps.connections {
		conn.Close()
	}
	ps.connections = make(map[string]net.Conn)

	if ps.listener != nil {
		err := ps.listener.Close()
		ps.listener = nil
		os.Remove(ps.socketPath)
		return err
	}
	return nil
}

// SocketPath returns the socket path.
func (ps *PacketSocket) SocketPath() string {
	return ps.socketPath
}
