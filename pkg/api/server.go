package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/methods"
	apimiddleware "github.com/RecoverdProject/recoverd-core/pkg/api/middleware"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models/requests"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

var JSONRPCErrorParseError = models.ErrorObject{
	Code:    -32700,
	Message: "Parse error",
}
var JSONRPCErrorInvalidRequest = models.ErrorObject{
	Code:    -32600,
	Message: "Invalid Request",
}
var JSONRPCErrorMethodNotFound = models.ErrorObject{
	Code:    -32601,
	Message: "Method not found",
}
var JSONRPCErrorServerError = models.ErrorObject{
	Code:    -32000,
	Message: "Server error",
}

// maxPostBodySize caps a single POST request body.
const maxPostBodySize = 1 << 20

func maybeUUID(req models.RequestObject) uuid.UUID {
	if req.ID == nil {
		return uuid.Nil
	}
	return *req.ID
}

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// contexts
	models.MethodContextsNew:      methods.HandleContextsNew,
	models.MethodContextsDelete:   methods.HandleContextsDelete,
	models.MethodContextsAddImage: methods.HandleContextsAddImage,
	// media probing
	models.MethodDisks:           methods.HandleDisks,
	models.MethodDisksPartitions: methods.HandleDisksPartitions,
	models.MethodArchs:           methods.HandleArchs,
	models.MethodArchsSet:        methods.HandleArchsSet,
	models.MethodFileOpts:        methods.HandleFileOpts,
	models.MethodOptionsSet:      methods.HandleOptionsSet,
	// recoveries
	models.MethodRecoveriesStart:  methods.HandleRecoveriesStart,
	models.MethodRecoveriesStatus: methods.HandleRecoveriesStatus,
	models.MethodRecoveriesStop:   methods.HandleRecoveriesStop,
	models.MethodRecoveriesStats:  methods.HandleRecoveriesStats,
	models.MethodRecoveriesList:   methods.HandleRecoveriesHistory,
	// service
	models.MethodShutdown:  methods.HandleShutdown,
	models.MethodHeartbeat: methods.HandleHeartbeat,
	models.MethodVersion:   methods.HandleVersion,
}

func handleRequest(env requests.RequestEnv, req models.RequestObject) (any, error) {
	log.Debug().Str("method", req.Method).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}

	if req.ID == nil {
		return nil, fmt.Errorf("missing ID for request: %s", req.Method)
	}

	env.ID = *req.ID
	env.Params = req.Params

	return fn(env)
}

func sendResponse(session *melody.Session, id uuid.UUID, result any) error {
	resp := models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling response: %w", err)
	}

	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func sendError(session *melody.Session, id uuid.UUID, errObj models.ErrorObject) error {
	log.Debug().Int("code", errObj.Code).Str("message", errObj.Message).Msg("sending error")

	resp := models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling error response: %w", err)
	}

	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing error response: %w", err)
	}
	return nil
}

func broadcastNotifications(
	done <-chan struct{},
	m *melody.Melody,
	notifications <-chan models.Notification,
) {
	for {
		select {
		case <-done:
			log.Debug().Msg("stopping notification broadcaster")
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}

			req := models.RequestObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
			}
			if notif.Params != nil {
				params, err := json.Marshal(notif.Params)
				if err != nil {
					log.Error().Err(err).Msg("marshalling notification params")
					continue
				}
				req.Params = params
			}

			data, err := json.Marshal(req)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification request")
				continue
			}

			if err := m.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func (s *Server) handleWSMessage() func(session *melody.Session, msg []byte) {
	return func(session *melody.Session, msg []byte) {
		// bare ping keeps dumb clients alive without a JSON-RPC roundtrip
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		if !json.Valid(msg) {
			log.Error().Msg("data not valid json")
			if err := sendError(session, uuid.Nil, JSONRPCErrorParseError); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		var req models.RequestObject
		err := json.Unmarshal(msg, &req)

		if err == nil && req.JSONRPC != "2.0" {
			log.Error().Str("jsonrpc", req.JSONRPC).Msg("unsupported payload version")
			if err := sendError(session, maybeUUID(req), JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		if err == nil && req.Method != "" {
			if req.ID == nil {
				// a request without an id is a notification
				log.Info().Str("method", req.Method).Msg("received notification, ignoring")
				return
			}

			resp, err := handleRequest(requests.RequestEnv{
				Config:          s.cfg,
				Sessions:        s.sessions,
				Database:        s.db,
				RequestShutdown: s.requestShutdown,
				IsLocal:         apimiddleware.IsLoopbackAddr(session.Request.RemoteAddr),
			}, req)
			if err != nil {
				if err := sendError(session, *req.ID, JSONRPCErrorServerError); err != nil {
					log.Error().Err(err).Msg("error sending error response")
				}
				return
			}

			if err := sendResponse(session, *req.ID, resp); err != nil {
				log.Error().Err(err).Msg("error sending response")
			}
			return
		}

		log.Error().Err(err).Msg("message does not match known types")
		if err := sendError(session, uuid.Nil, JSONRPCErrorInvalidRequest); err != nil {
			log.Error().Err(err).Msg("error sending error response")
		}
	}
}

func writePostResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("writing POST response")
	}
}

func writePostError(w http.ResponseWriter, id uuid.UUID, errObj models.ErrorObject) {
	writePostResponse(w, models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
}

// handlePostRequest services a single JSON-RPC request over plain HTTP
// POST, for clients that don't want to hold a websocket open.
func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || contentType != "application/json" {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPostBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if !json.Valid(body) {
		writePostError(w, uuid.Nil, JSONRPCErrorParseError)
		return
	}

	var req models.RequestObject
	if err := json.Unmarshal(body, &req); err != nil {
		writePostError(w, uuid.Nil, JSONRPCErrorParseError)
		return
	}

	if req.JSONRPC != "2.0" {
		writePostError(w, maybeUUID(req), JSONRPCErrorInvalidRequest)
		return
	}

	if _, ok := methodMap[strings.ToLower(req.Method)]; !ok {
		writePostError(w, maybeUUID(req), JSONRPCErrorMethodNotFound)
		return
	}

	if req.ID == nil {
		// notification, accepted but unanswered
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp, err := handleRequest(requests.RequestEnv{
		Config:          s.cfg,
		Sessions:        s.sessions,
		Database:        s.db,
		RequestShutdown: s.requestShutdown,
		IsLocal:         apimiddleware.IsLoopbackAddr(r.RemoteAddr),
	}, req)
	if err != nil {
		writePostError(w, *req.ID, JSONRPCErrorServerError)
		return
	}

	writePostResponse(w, models.ResponseObject{
		JSONRPC: "2.0",
		ID:      *req.ID,
		Result:  resp,
	})
}

// Server is the running JSON-RPC API endpoint.
type Server struct {
	cfg             *config.Instance
	sessions        *session.Manager
	db              *database.Database
	requestShutdown func()

	httpSrv     *http.Server
	melody      *melody.Melody
	addr        net.Addr
	done        chan struct{}
	limiterCtx  context.Context
	limiterStop context.CancelFunc
}

// Addr reports the bound listen address, useful when the configured
// port is 0.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start brings up the websocket and POST endpoints and returns
// immediately. The caller owns the returned server and must Stop it.
func Start(
	cfg *config.Instance,
	sessions *session.Manager,
	db *database.Database,
	notifications <-chan models.Notification,
	requestShutdown func(),
) (*Server, error) {
	s := &Server{
		cfg:             cfg,
		sessions:        sessions,
		db:              db,
		requestShutdown: requestShutdown,
		done:            make(chan struct{}),
	}
	s.limiterCtx, s.limiterStop = context.WithCancel(context.Background())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(config.APIRequestTimeout))
	r.Use(apimiddleware.HTTPIPFilterMiddleware(apimiddleware.NewIPFilter(cfg.AllowIPs())))

	limiter := apimiddleware.NewIPRateLimiter()
	limiter.StartCleanup(s.limiterCtx)
	r.Use(apimiddleware.HTTPRateLimitMiddleware(limiter))

	allowedOrigins := cfg.AllowedOrigins()
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
	}))

	s.melody = melody.New()
	s.melody.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }
	s.melody.HandleMessage(apimiddleware.WebSocketRateLimitHandler(limiter, s.handleWSMessage()))
	go broadcastNotifications(s.done, s.melody, notifications)

	wsHandler := func(w http.ResponseWriter, r *http.Request) {
		if err := s.melody.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	}
	r.Get("/api", wsHandler)
	r.Get("/api/v1", wsHandler)
	r.Post("/api", s.handlePostRequest)
	r.Post("/api/v1", s.handlePostRequest)

	addr := net.JoinHostPort(cfg.APIListen(), strconv.Itoa(cfg.APIPort()))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening on %s: %w", addr, err)
	}
	s.addr = listener.Addr()

	s.httpSrv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting API server")
		if err := s.httpSrv.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("error running http server")
		}
	}()

	return s, nil
}

// Stop closes all websocket sessions and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)
	s.limiterStop()
	if err := s.melody.Close(); err != nil {
		log.Warn().Err(err).Msg("closing websocket sessions")
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down http server: %w", err)
	}
	return nil
}
