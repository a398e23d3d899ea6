package mcpwire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/relaywire/mcpwire"

// RouterOption represents the options for the router.
type RouterOption func(*Router)

// PeerContextFunc derives the request context for an inbound message, letting
// transports attach caller roles and metadata. The default context carries
// only the session id.
type PeerContextFunc func(sess Session, msg JSONRPCMessage) RequestContext

// Router is the protocol engine's orchestrator. It classifies every message
// flowing over a session, dispatches requests and notifications through the
// handler registry under admission control and the resilience stack, and
// matches responses to the outbound requests awaiting them.
//
// Both peers of a connection can run a Router; the same machinery serves the
// caller-initiated methods (tools, resources, prompts, completion, ping) and
// the responder-initiated ones (sampling, elicitation, roots). The only
// difference is which side registered the handler.
type Router struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	registry   *Registry
	correlator *Correlator
	resilience resilience
	metrics    *metrics
	sem        *semaphore.Weighted

	peerContext PeerContextFunc

	sessMu sync.RWMutex
	sess   Session
}

// NewRouter creates a router with fresh breaker, dedup, and correlator state.
// Call Close to release it.
func NewRouter(options ...RouterOption) *Router {
	r := &Router{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}

	r.logger = r.logger.With(slog.String("component", "router"))
	r.tracer = otel.Tracer(tracerName)

	if r.registry == nil {
		r.registry = NewRegistry()
	}
	if r.metrics == nil {
		r.metrics = newMetrics(nil)
	}
	r.correlator = NewCorrelator(r.logger)
	r.sem = semaphore.NewWeighted(r.cfg.MaxConcurrentRequests)

	breakers := newBreakerSet(r.cfg.Breaker, r.logger, func(endpoint string) {
		r.metrics.breakerOpens.WithLabelValues(endpoint).Inc()
	})
	r.resilience = resilience{
		dedup:    NewDedupCache(r.cfg.Dedup, r.logger),
		dedupTTL: r.cfg.Dedup.TTL,
		breakers: breakers,
		retry:    newRetryPolicy(r.cfg.Retry),
	}

	// Liveness checks answer out of the box; replace by re-registering.
	r.registry.Register(MethodPing, HandlerFunc(
		func(context.Context, RequestContext, json.RawMessage) (any, error) {
			return struct{}{}, nil
		}))

	return r
}

// WithConfig sets the router configuration.
func WithConfig(cfg Config) RouterOption {
	return func(r *Router) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger for the router.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger.With(slog.String("package", "mcpwire"))
	}
}

// WithRegistry shares a pre-populated handler registry, e.g. one registry
// serving many connections.
func WithRegistry(registry *Registry) RouterOption {
	return func(r *Router) {
		r.registry = registry
	}
}

// WithPrometheusRegisterer registers the router's metrics against reg.
func WithPrometheusRegisterer(reg prometheus.Registerer) RouterOption {
	return func(r *Router) {
		r.metrics = newMetrics(reg)
	}
}

// WithPeerContext sets the function deriving request contexts for inbound
// messages, typically from transport-level authentication.
func WithPeerContext(fn PeerContextFunc) RouterOption {
	return func(r *Router) {
		r.peerContext = fn
	}
}

// RegisterHandler binds a handler to a method name, replacing any prior
// registration for the same method.
func (r *Router) RegisterHandler(method string, h Handler, allowedRoles ...string) {
	r.registry.Register(method, h, allowedRoles...)
}

// Registry returns the router's handler registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Serve drains the session's messages, dispatching each one on its own
// goroutine, until the session closes. It blocks until all in-flight
// dispatches have finished and fails any still-pending outbound requests.
func (r *Router) Serve(sess Session) {
	r.bindSession(sess)

	var wg sync.WaitGroup
	for msg := range sess.Messages() {
		if msg.JSONRPC != JSONRPCVersion {
			r.logger.Info("dropping message with invalid jsonrpc version",
				slog.String("method", msg.Method),
				slog.String("messageID", string(msg.ID)))
			continue
		}

		wg.Add(1)
		go func(msg JSONRPCMessage) {
			defer wg.Done()

			rc := RequestContext{SessionID: sess.ID()}
			if r.peerContext != nil {
				rc = r.peerContext(sess, msg)
			}

			resp := r.RouteInbound(context.Background(), msg, rc)
			if resp == nil {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.DefaultTimeout)
			defer cancel()
			if err := sess.Send(ctx, *resp); err != nil {
				r.logger.Error("failed to send response",
					slog.String("messageID", string(resp.ID)),
					slog.String("err", err.Error()))
			}
		}(msg)
	}
	wg.Wait()

	r.unbindSession()
	r.correlator.Close()
}

// RouteInbound classifies a decoded message and routes it. It returns the
// response to send back, or nil for notifications and responses.
func (r *Router) RouteInbound(ctx context.Context, msg JSONRPCMessage, rc RequestContext) *JSONRPCMessage {
	switch {
	case msg.IsResponse():
		r.correlator.Complete(msg.ID, msg)
		return nil
	case msg.IsNotification():
		r.routeNotification(ctx, msg, rc)
		return nil
	case msg.IsRequest():
		return r.routeRequest(ctx, msg, rc)
	default:
		r.logger.Warn("dropping malformed message",
			slog.String("messageID", string(msg.ID)))
		return nil
	}
}

// Call sends a request to the peer and blocks until its response arrives,
// the timeout passes, or ctx is cancelled. A non-positive timeout falls back
// to the configured default. This is the entry point for responder-initiated
// operations such as sampling, elicitation, and roots discovery.
func (r *Router) Call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if !r.cfg.EnableBidirectional {
		return nil, ErrBidirectionalDisabled
	}
	sess := r.session()
	if sess == nil {
		return nil, &TransportError{Err: errSessionClosed}
	}
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}

	id := MustString(uuid.New().String())

	var paramsBs json.RawMessage
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsBs = bs
	}

	// The pending entry must exist before the frame leaves, or a fast peer
	// could answer a request we are not yet tracking.
	pending, err := r.correlator.Register(id, time.Now().Add(timeout))
	if err != nil {
		return nil, err
	}

	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsBs,
	}

	_, err = r.resilience.run(ctx, "peer:"+method, "", func(ctx context.Context) (any, error) {
		if sendErr := sess.Send(ctx, msg); sendErr != nil {
			return nil, &TransportError{Err: sendErr}
		}
		return nil, nil
	})
	if err != nil {
		r.correlator.Cancel(id)
		r.metrics.observePeerCall(method, err)
		return nil, err
	}

	res, err := pending.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.correlator.Cancel(id)
		}
		r.metrics.observePeerCall(method, err)
		return nil, err
	}

	r.metrics.observePeerCall(method, nil)
	return res.Result, nil
}

// Close releases the router's resources: the dedup sweeper stops and any
// still-pending outbound requests fail.
func (r *Router) Close() {
	r.correlator.Close()
	r.resilience.dedup.Close()
}

func (r *Router) routeRequest(ctx context.Context, msg JSONRPCMessage, rc RequestContext) *JSONRPCMessage {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DefaultTimeout)
	defer cancel()

	if r.cfg.EnableTracing {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "mcpwire.route",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("rpc.method", msg.Method),
				attribute.String("rpc.id", string(msg.ID)),
			))
		defer span.End()
	}

	result, err := r.dispatch(ctx, msg, rc)
	r.metrics.observeRequest(msg.Method, err)

	resp := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      msg.ID,
	}

	if err != nil {
		r.logger.Info("request failed",
			slog.String("method", msg.Method),
			slog.String("messageID", string(msg.ID)),
			slog.String("err", err.Error()))
		if r.cfg.EnableTracing {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		resp.Error = toJSONRPCError(err)
		return &resp
	}

	resultBs, err := json.Marshal(result)
	if err != nil {
		resp.Error = toJSONRPCError(fmt.Errorf("%w: failed to marshal result: %w", ErrValidationFailed, err))
		return &resp
	}
	resp.Result = resultBs
	return &resp
}

// dispatch runs the full pipeline for one request: admission, handler
// lookup, access control, validation, then the resilience stack around the
// handler itself. Caller errors (unknown method, unauthorized,
// invalid shape) return before the resilience stack and therefore never
// count toward breaker state.
func (r *Router) dispatch(ctx context.Context, msg JSONRPCMessage, rc RequestContext) (any, error) {
	if r.cfg.QueueOnBusy {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.metrics.rejectedTotal.WithLabelValues("admission_timeout").Inc()
			return nil, fmt.Errorf("%w: waiting for admission: %w", ErrTimeout, err)
		}
	} else if !r.sem.TryAcquire(1) {
		r.metrics.rejectedTotal.WithLabelValues("busy").Inc()
		return nil, ErrServerBusy
	}
	defer r.sem.Release(1)

	r.metrics.inflight.Inc()
	defer r.metrics.inflight.Dec()

	entry, ok := r.registry.Lookup(msg.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, msg.Method)
	}

	if !rc.HasAnyRole(entry.AllowedRoles) {
		return nil, fmt.Errorf("%w: method %s requires one of roles %v",
			ErrUnauthorized, msg.Method, entry.AllowedRoles)
	}

	if r.cfg.ValidateRequests {
		if v, ok := entry.Handler.(Validator); ok {
			if err := v.Validate(msg.Params); err != nil {
				return nil, err
			}
		}
	}

	key := fmt.Sprintf("%s:%s", msg.ID, msg.Method)
	result, err := r.resilience.run(ctx, msg.Method, key, func(ctx context.Context) (any, error) {
		return entry.Handler.Handle(ctx, rc, msg.Params)
	})
	if err != nil {
		return nil, err
	}

	if r.cfg.ValidateResponses {
		if rv, ok := entry.Handler.(ResultValidator); ok {
			if err := rv.ValidateResult(result); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
			}
		}
	}

	return result, nil
}

// routeNotification dispatches a notification through the same lookup path
// as requests. Failures are logged, never surfaced to the peer.
func (r *Router) routeNotification(ctx context.Context, msg JSONRPCMessage, rc RequestContext) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DefaultTimeout)
	defer cancel()

	entry, ok := r.registry.Lookup(msg.Method)
	if !ok {
		r.logger.Debug("no handler for notification", slog.String("method", msg.Method))
		return
	}
	if !rc.HasAnyRole(entry.AllowedRoles) {
		r.logger.Warn("unauthorized notification dropped",
			slog.String("method", msg.Method),
			slog.String("sessionID", rc.SessionID))
		return
	}

	var err error
	if r.cfg.ResilientNotifications {
		// Notifications carry no id, so there is no idempotency key and
		// the dedup layer is skipped even here.
		_, err = r.resilience.run(ctx, msg.Method, "", func(ctx context.Context) (any, error) {
			return entry.Handler.Handle(ctx, rc, msg.Params)
		})
	} else {
		_, err = entry.Handler.Handle(ctx, rc, msg.Params)
	}
	if err != nil {
		r.logger.Error("notification handler failed",
			slog.String("method", msg.Method),
			slog.String("err", err.Error()))
	}
}

func (r *Router) bindSession(sess Session) {
	r.sessMu.Lock()
	r.sess = sess
	r.sessMu.Unlock()
}

func (r *Router) unbindSession() {
	r.sessMu.Lock()
	r.sess = nil
	r.sessMu.Unlock()
}

func (r *Router) session() Session {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	return r.sess
}
