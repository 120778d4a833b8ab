package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/zcli/zkernel/config"
	"github.com/zcli/zkernel/kernel"
	"github.com/zcli/zkernel/session"
)

// Server serves the dispatcher over a WebSocket endpoint. Each connection
// gets its own session and its own execution context per request, so
// concurrent clients never share dispatch state.
type Server struct {
	cfg        config.Config
	dispatcher *kernel.Dispatcher
	sessions   *session.Manager
	validators []Validator
	logger     *zap.Logger
}

// NewServer wires a bridge server from config: message size and throttling
// validators are read once at construction.
func NewServer(cfg config.Config, dispatcher *kernel.Dispatcher, sessions *session.Manager, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSize, err := cfg.MaxMessageSize()
	if err != nil {
		return nil, fmt.Errorf("read max message size: %w", err)
	}
	rps, err := cfg.ThrottlingRPS()
	if err != nil {
		return nil, fmt.Errorf("read throttling rps: %w", err)
	}
	rpm, err := cfg.ThrottlingRPM()
	if err != nil {
		return nil, fmt.Errorf("read throttling rpm: %w", err)
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		sessions:   sessions,
		validators: []Validator{
			&SizeValidator{Max: maxSize},
			&Throttle{RPS: rps, RPM: rpm},
		},
		logger: logger,
	}, nil
}

type wsUserIDKey struct{}

// RegisterHandlers attaches the bridge routes to a mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	wsHandler := websocket.Handler(s.handleConn)

	mux.HandleFunc("/bridge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, err := s.authenticate(r)
		if err != nil {
			s.logger.Warn("bridge auth failed",
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), wsUserIDKey{}, userID))
		wsHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		if err := s.cfg.Status(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// authenticate resolves the caller's user id from the API key carried in
// the Authorization header (Bearer) or the "key" query parameter. Config
// stores key hashes only.
func (s *Server) authenticate(r *http.Request) (string, error) {
	key := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		key = strings.TrimPrefix(auth, "Bearer ")
	}
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		return "", fmt.Errorf("no API key supplied")
	}
	userID, err := s.cfg.GetUserIDByKeyHash(config.HashAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("unknown API key")
	}
	return userID, nil
}

// peer serializes concurrent envelope writes onto one connection.
type peer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (p *peer) send(resp *Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(resp)
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	userID := "anonymous"
	if r := conn.Request(); r != nil {
		if resolved, ok := r.Context().Value(wsUserIDKey{}).(string); ok && resolved != "" {
			userID = resolved
		}
	}

	sess := s.sessions.Create(userID, nil)
	defer s.sessions.Close(sess.ID)

	logger := sess.Logger()
	logger.Info("bridge client connected", zap.String("user_id", userID))

	p := &peer{enc: json.NewEncoder(conn)}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var frame []byte
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			logger.Debug("bridge connection closed", zap.Error(err))
			return
		}
		sess.UpdateLastActivity()

		var req Request
		if err := json.Unmarshal(frame, &req); err != nil {
			s.reply(p, logger, "", kernel.Result{}, fmt.Errorf("malformed request: %w", err))
			continue
		}

		if err := s.validate(frame, sess); err != nil {
			s.reply(p, logger, req.ID, kernel.Result{}, err)
			continue
		}

		// Each request is dispatched on its own goroutine so one blocking
		// backend does not stall the read loop.
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic during dispatch", zap.Any("panic", r), zap.String("request_id", req.ID))
					s.reply(p, logger, req.ID, kernel.Result{}, fmt.Errorf("internal error during dispatch"))
				}
			}()
			s.handleRequest(conn, p, sess, req)
		}(req)
	}
}

func (s *Server) validate(frame []byte, sess *session.Session) error {
	for _, v := range s.validators {
		if err := v.Validate(frame, sess); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleRequest(conn *websocket.Conn, p *peer, sess *session.Session, req Request) {
	logger := sess.Logger()

	cmd, err := decodeCommand(req.Command)
	if err != nil {
		s.reply(p, logger, req.ID, kernel.Result{}, err)
		return
	}

	ectx := &kernel.ExecContext{
		Path:    req.Path,
		Session: sess,
		Mode:    kernel.ModeBridge,
		Args:    req.Args,
	}

	ctx := context.Background()
	if r := conn.Request(); r != nil {
		ctx = r.Context()
	}
	res, err := s.dispatcher.Dispatch(ctx, ectx, cmd)
	s.reply(p, logger, req.ID, res, err)
}

// reply shapes the outcome into an envelope and writes it. Errors travel in
// the same channel as success, per the dispatch contract.
func (s *Server) reply(p *peer, logger *zap.Logger, requestID string, res kernel.Result, err error) {
	resp := &Response{ID: requestID, Envelope: *kernel.NewEnvelope(res, err)}
	if sendErr := p.send(resp); sendErr != nil {
		logger.Warn("failed to write envelope",
			zap.String("request_id", requestID),
			zap.Error(sendErr),
		)
	}
}
