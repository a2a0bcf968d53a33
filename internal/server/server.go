// Package server is the wire transport: it owns client identity across
// reconnects, decodes inbound envelopes, routes them to the orchestration
// handler, and exposes the fire-and-forget push API for server-originated
// messages.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nova/internal/async"
	"nova/internal/errors"
	"nova/internal/observability"
	"nova/internal/protocol"
)

// Handler receives decoded client messages. Dispatch must not block the read
// loop; the orchestrator hands work to per-client goroutines.
type Handler interface {
	HandleInput(clientID, text string) string
	HandleInterrupt(clientID string)
	HandleTaskStatusRequest(clientID, taskID string)
	HandleContextUpdate(ctx context.Context, clientID, updateType string, data map[string]any)
	EndSession(clientID string)
}

// Config carries the transport settings.
type Config struct {
	Host           string
	Port           int
	EnableCORS     bool
	KnownRetention time.Duration
	MaxKnownIDs    int
}

// Server terminates websocket connections and serves the HTTP surface.
type Server struct {
	config      Config
	connections *ConnectionManager
	handler     Handler
	logger      *observability.Logger
	metrics     *observability.MetricsCollector
	upgrader    websocket.Upgrader

	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// New assembles the transport. metrics may be nil.
func New(config Config, connections *ConnectionManager, handler Handler, logger *observability.Logger, metrics *observability.MetricsCollector) *Server {
	if logger == nil {
		logger = observability.Nop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		config:      config,
		connections: connections,
		handler:     handler,
		logger:      logger,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		engine:    engine,
		startTime: time.Now(),
	}

	engine.GET("/ws", s.handleWebSocket)
	engine.GET("/api/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Engine exposes the router, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetHandler installs the message handler. The transport and the
// orchestrator reference each other, so whichever is built second is wired
// in here before Start.
func (s *Server) SetHandler(handler Handler) {
	s.handler = handler
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
		"clients": s.connections.LiveCount(),
	})
}

// handleWebSocket upgrades the socket and runs the connection to completion.
// The first frame must be a connect envelope; everything after is routed to
// the handler.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.handler == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	conn, ok := s.performHandshake(ws)
	if !ok {
		return
	}

	ctx := observability.ContextWithClientID(c.Request.Context(), conn.clientID)
	s.connections.Attach(conn)
	async.Go(s.logger, "write-pump-"+conn.clientID, conn.writePump)
	if s.metrics != nil {
		s.metrics.ClientConnected(ctx, 1)
	}
	s.logger.InfoContext(ctx, "client connected")

	s.readLoop(ctx, conn)

	s.connections.Detach(conn)
	s.handler.EndSession(conn.clientID)
	if s.metrics != nil {
		s.metrics.ClientConnected(ctx, -1)
	}
	s.logger.InfoContext(ctx, "client disconnected")
}

// performHandshake reads the connect frame, resolves identity, and answers
// with connected{clientId, isReconnect}.
func (s *Server) performHandshake(ws *websocket.Conn) (*connection, bool) {
	_, frame, err := ws.ReadMessage()
	if err != nil {
		return nil, false
	}
	msg, err := protocol.Decode(frame)
	if err != nil || msg.Type != protocol.TypeConnect {
		s.logger.Warn("handshake rejected", "error", err)
		return nil, false
	}
	var connect protocol.ConnectPayload
	if err := msg.UnmarshalPayload(&connect); err != nil {
		s.logger.Warn("handshake rejected", "error", err)
		return nil, false
	}

	clientID, isReconnect := s.connections.Resolve(connect.ClientID)
	conn := newConnection(clientID, ws)

	reply, err := protocol.NewMessage(protocol.TypeConnected, protocol.ConnectedPayload{
		ClientID:    clientID,
		IsReconnect: isReconnect,
	})
	if err != nil {
		return nil, false
	}
	body, err := protocol.Encode(reply)
	if err != nil {
		return nil, false
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, body); err != nil {
		return nil, false
	}
	return conn, true
}

// readLoop decodes inbound envelopes until the socket dies. A malformed
// frame is dropped and logged; the connection stays up. Unknown message
// types are ignored.
func (s *Server) readLoop(ctx context.Context, conn *connection) {
	for {
		_, frame, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			if errors.IsProtocol(err) {
				s.logger.WarnContext(ctx, "dropping malformed frame", "error", err)
				continue
			}
			return
		}
		s.route(ctx, conn.clientID, msg)
	}
}

func (s *Server) route(ctx context.Context, clientID string, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeInput:
		var input protocol.InputPayload
		if err := msg.UnmarshalPayload(&input); err != nil {
			s.logger.WarnContext(ctx, "dropping malformed input payload", "error", err)
			return
		}
		s.handler.HandleInput(clientID, input.Text)
	case protocol.TypeInterrupt:
		s.handler.HandleInterrupt(clientID)
	case protocol.TypeTaskStatus:
		var status protocol.TaskStatusPayload
		if err := msg.UnmarshalPayload(&status); err != nil {
			return
		}
		s.handler.HandleTaskStatusRequest(clientID, status.TaskID)
	case protocol.TypeContextUpdate:
		var update protocol.ContextUpdatePayload
		if err := msg.UnmarshalPayload(&update); err != nil {
			return
		}
		s.handler.HandleContextUpdate(ctx, clientID, update.Type, update.Data)
	default:
		s.logger.DebugContext(ctx, "ignoring message type", "type", string(msg.Type))
	}
}

// push encodes an envelope and queues it for clientID. A client that is not
// live, a full buffer, or an encode failure all drop the message silently;
// pushes are never buffered for later.
func (s *Server) push(clientID string, msgType protocol.MessageType, payload any) {
	conn := s.connections.Live(clientID)
	if conn == nil {
		return
	}
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Warn("push encode failed", "type", string(msgType), "error", err)
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Warn("push encode failed", "type", string(msgType), "error", err)
		return
	}
	if !conn.trySend(frame) {
		if s.metrics != nil {
			s.metrics.RecordDroppedMessage(context.Background(), string(msgType))
		}
		s.logger.Debug("push dropped", "client_id", clientID, "type", string(msgType))
	}
}

// SendConnected re-announces identity, used when a handshake is replayed.
func (s *Server) SendConnected(clientID string, payload protocol.ConnectedPayload) {
	s.push(clientID, protocol.TypeConnected, payload)
}

func (s *Server) SendAck(clientID string, payload protocol.AckPayload) {
	s.push(clientID, protocol.TypeAck, payload)
}

func (s *Server) SendSpeech(clientID string, payload protocol.SpeechPayload) {
	s.push(clientID, protocol.TypeSpeech, payload)
}

func (s *Server) SendDocument(clientID string, payload protocol.DocumentPayload) {
	s.push(clientID, protocol.TypeDocument, payload)
}

func (s *Server) SendProgress(clientID string, payload protocol.ProgressPayload) {
	s.push(clientID, protocol.TypeProgress, payload)
}

func (s *Server) SendError(clientID string, payload protocol.ErrorPayload) {
	s.push(clientID, protocol.TypeError, payload)
}

func (s *Server) SendClarify(clientID string, payload protocol.ClarifyPayload) {
	s.push(clientID, protocol.TypeClarify, payload)
}
