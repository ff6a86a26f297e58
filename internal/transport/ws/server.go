package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"biomemap.ai/internal/protocol"
	"biomemap.ai/internal/sim/service"
)

const (
	defaultQueue = 8
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second

	// Client frames are small JSON control messages.
	maxMessageBytes = 16 * 1024
)

type Server struct {
	svc *service.Service
	log *log.Logger

	upgrader websocket.Upgrader
	sessions atomic.Uint64
	active   atomic.Int64
}

func NewServer(svc *service.Service, logger *log.Logger) *Server {
	return &Server{
		svc: svc,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Active is the number of connected sessions.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageBytes)

		sessionID, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.active.Add(1)
		defer func() {
			s.active.Add(-1)
			if s.log != nil {
				s.log.Printf("ws session %s: disconnected", sessionID)
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, defaultQueue)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for ctx.Err() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			b, err := json.Marshal(s.handle(msg))
			if err != nil {
				b, _ = json.Marshal(protocol.NewError("", protocol.ErrInternal, "encode response"))
			}
			// Blocking send: a client that stops reading stops being read.
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		cancel()
		<-done
	}
}

func (s *Server) handle(msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if base.Type != protocol.TypeQuery {
		return protocol.NewError("", protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}
	var q protocol.QueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "bad QUERY")
	}
	resp, errMsg := s.svc.Query(q)
	if errMsg != nil {
		return *errMsg
	}
	return resp
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	sessionID := fmt.Sprintf("S%d", s.sessions.Add(1))
	if err := writeJSON(conn, s.svc.Welcome(sessionID)); err != nil {
		return "", false
	}
	if s.log != nil {
		s.log.Printf("ws session %s: %s connected", sessionID, hello.ClientName)
	}
	return sessionID, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
