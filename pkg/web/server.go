package web

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/valyala/fasthttp"
)

// FastHTTPServer serves a FastRouter with request ids, panic isolation and
// backpressure in front of fasthttp's own worker pool
type FastHTTPServer struct {
	router       *FastRouter
	server       *fasthttp.Server
	addr         string
	logger       core.Logger
	maxQueue     int
	workers      int
	backpressure *BackpressureController

	totalRequests      int64
	rejectedRequests   int64
	successfulRequests int64
	errorRequests      int64
}

// FastHTTPServerConfig configures the fasthttp server
type FastHTTPServerConfig struct {
	Addr               string
	MaxQueue           int // requests admitted beyond Workers before 503
	Workers            int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxConns           int
	ReadBufferSize     int
	WriteBufferSize    int
	MaxRequestBodySize int
}

// DefaultFastHTTPServerConfig returns defaults sized for a single small instance
func DefaultFastHTTPServerConfig(addr string) *FastHTTPServerConfig {
	return &FastHTTPServerConfig{
		Addr:               addr,
		MaxQueue:           1000,
		Workers:            100,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxConns:           10000,
		ReadBufferSize:     8192,
		WriteBufferSize:    8192,
		MaxRequestBodySize: 1 << 20,
	}
}

// CCUBasedConfigWithUtilization sizes the server for maxCCU concurrent users
// while admitting only utilizationPercent of them before applying backpressure.
// Normal capacity is maxCCU * utilizationPercent / 100, split into workers
// (10%, clamped to 50..500) and queue (the rest, at least 100).
func CCUBasedConfigWithUtilization(addr string, maxCCU int, utilizationPercent int) *FastHTTPServerConfig {
	if utilizationPercent < 1 || utilizationPercent > 100 {
		utilizationPercent = 67
	}

	normalCapacity := int(float64(maxCCU) * float64(utilizationPercent) / 100.0)

	workers := normalCapacity / 10
	if workers < 50 {
		workers = 50
	}
	if workers > 500 {
		workers = 500
	}

	queueSize := normalCapacity - workers
	if queueSize < 100 {
		queueSize = 100
	}

	cfg := DefaultFastHTTPServerConfig(addr)
	cfg.MaxQueue = queueSize
	cfg.Workers = workers
	cfg.MaxConns = maxCCU
	return cfg
}

// NewFastHTTPServer creates a server. Routes are added through Router().
func NewFastHTTPServer(config *FastHTTPServerConfig, logger core.Logger) *FastHTTPServer {
	if config == nil {
		config = DefaultFastHTTPServerConfig(":8080")
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	s := &FastHTTPServer{
		router:       NewFastRouter(),
		addr:         config.Addr,
		logger:       logger,
		maxQueue:     config.MaxQueue,
		workers:      config.Workers,
		backpressure: NewBackpressureController(config.MaxQueue + config.Workers),
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		Name:                  "todoapi",
		Concurrency:           config.MaxConns,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		ReadBufferSize:        config.ReadBufferSize,
		WriteBufferSize:       config.WriteBufferSize,
		MaxRequestBodySize:    config.MaxRequestBodySize,
		NoDefaultServerHeader: true,
		ReduceMemoryUsage:     true,
		Logger:                fasthttpLogger{logger},
	}
	return s
}

// Router returns the router
func (s *FastHTTPServer) Router() *FastRouter {
	return s.router
}

// Handler returns the request handler, for serving on a custom listener
func (s *FastHTTPServer) Handler() fasthttp.RequestHandler {
	return s.handleRequest
}

// Addr returns the configured listen address
func (s *FastHTTPServer) Addr() string {
	return s.addr
}

// ListenAndServe blocks serving on the configured address
func (s *FastHTTPServer) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.addr)
	return s.server.ListenAndServe(s.addr)
}

// Serve blocks serving on ln
func (s *FastHTTPServer) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *FastHTTPServer) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

// Metrics returns current server metrics
func (s *FastHTTPServer) Metrics() ServerMetrics {
	bp := s.backpressure.GetMetrics()
	return ServerMetrics{
		InFlight:           bp.CurrentLoad,
		RejectedRequests:   atomic.LoadInt64(&s.rejectedRequests),
		QueueCapacity:      s.maxQueue,
		Workers:            s.workers,
		NormalCCU:          int(bp.NormalCapacity),
		CCUUtilization:     bp.Utilization,
		TotalRequests:      atomic.LoadInt64(&s.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&s.successfulRequests),
		ErrorRequests:      atomic.LoadInt64(&s.errorRequests),
	}
}

// ServerMetrics provides server performance metrics
type ServerMetrics struct {
	InFlight           int64
	RejectedRequests   int64 // 503 from backpressure
	QueueCapacity      int
	Workers            int
	NormalCCU          int
	CCUUtilization     float64 // percent of NormalCCU
	TotalRequests      int64
	SuccessfulRequests int64 // 2xx
	ErrorRequests      int64 // 5xx
}

// handleRequest applies backpressure, assigns the request id and routes.
// A panic that escapes the middleware chain becomes a 500 here.
func (s *FastHTTPServer) handleRequest(rc *fasthttp.RequestCtx) {
	atomic.AddInt64(&s.totalRequests, 1)

	if !s.backpressure.TryAcquire() {
		atomic.AddInt64(&s.rejectedRequests, 1)
		fastJSONError(rc, fasthttp.StatusServiceUnavailable, CodeServiceUnavailable,
			"Server overloaded, retry later")
		return
	}
	defer s.backpressure.Release()

	requestID := core.EnsureRequestID(string(rc.Request.Header.Peek(core.RequestIDHeader)))
	rc.Response.Header.Set(core.RequestIDHeader, requestID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(map[string]interface{}{"request_id": requestID}).Errorf("handler panic: %v", r)
			fastJSONError(rc, fasthttp.StatusInternalServerError, CodeInternal, "Internal server error")
		}
		s.countStatus(rc.Response.StatusCode())
	}()

	s.router.ServeFastHTTP(NewFastRequestContext(rc, requestID))
}

func (s *FastHTTPServer) countStatus(status int) {
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&s.successfulRequests, 1)
	case status >= 500:
		atomic.AddInt64(&s.errorRequests, 1)
	}
}

// fasthttpLogger routes fasthttp's internal messages to the server logger
type fasthttpLogger struct {
	l core.Logger
}

func (f fasthttpLogger) Printf(format string, args ...interface{}) {
	f.l.Warnf(format, args...)
}
