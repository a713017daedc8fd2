package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-dspstream/internal/audio"
	"github.com/example/go-dspstream/internal/config"
	"github.com/example/go-dspstream/internal/container"
	"github.com/example/go-dspstream/internal/convert"
	"github.com/example/go-dspstream/internal/pcm"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Encoder turns a WAV body into container bytes.
type Encoder interface {
	Encode(ctx context.Context, wav []byte, opts convert.Options) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, wav []byte, opts convert.Options) ([]byte, error)

func (f EncoderFunc) Encode(ctx context.Context, wav []byte, opts convert.Options) ([]byte, error) {
	return f(ctx, wav, opts)
}

// PipelineEncoder runs convert.WAV.
var PipelineEncoder = EncoderFunc(func(ctx context.Context, wav []byte, opts convert.Options) ([]byte, error) {
	res, err := convert.WAV(ctx, wav, opts)
	if err != nil {
		return nil, err
	}
	return res.Container, nil
})

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxBodyBytes   int64
	workers        int
	encodeWorkers  int
	requestTimeout time.Duration
	defaultFormat  container.Format
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxBodyBytes:   64 << 20,
		workers:        2,
		requestTimeout: 60 * time.Second,
		defaultFormat:  container.BCSTM,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxBodyBytes sets the largest accepted WAV body for POST /v1/encode.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

// WithWorkers sets the maximum number of concurrent encodes. Zero disables
// the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithEncodeWorkers sets the goroutines each encode may use.
func WithEncodeWorkers(n int) Option {
	return func(o *options) { o.encodeWorkers = n }
}

// WithRequestTimeout sets the per-request encode deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithDefaultFormat sets the container used when the request names none.
func WithDefaultFormat(f container.Format) Option {
	return func(o *options) { o.defaultFormat = f }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	enc  Encoder
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health and POST /v1/encode.
func NewHandler(enc Encoder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		enc:  enc,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/encode", h.handleEncode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: "ok", Version: buildVersion()})
}

// parseQuery reads format and loop from the query string. loop=none drops
// any loop found in the WAV file.
func (h *handler) parseQuery(r *http.Request) (convert.Options, error) {
	q := r.URL.Query()
	opts := convert.Options{
		Format:  h.opts.defaultFormat,
		Workers: h.opts.encodeWorkers,
	}
	if v := q.Get("format"); v != "" {
		f, err := container.ParseFormat(v)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	switch v := q.Get("loop"); v {
	case "":
	case "none", "off":
		opts.Loop = &convert.Loop{Disable: true}
	default:
		start, end, err := pcm.ParseLoop(v)
		if err != nil {
			return opts, err
		}
		opts.Loop = &convert.Loop{Start: start, End: end}
	}
	return opts, nil
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	opts, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("body exceeds maximum size of %d bytes", h.opts.maxBodyBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	// Acquire a worker slot, giving up when the request deadline passes.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "no encode worker available")
			return
		}
		defer func() { <-h.sem }()
	}

	start := time.Now()
	out, err := h.enc.Encode(ctx, body, opts)
	durationMS := time.Since(start).Milliseconds()

	attrs := []any{
		slog.String("format", opts.Format.String()),
		slog.Int("wav_bytes", len(body)),
		slog.Int64("duration_ms", durationMS),
	}
	if err != nil {
		status := statusFor(err)
		attrs = append(attrs, slog.Int("status", status), slog.String("error", err.Error()))
		switch status {
		case http.StatusGatewayTimeout:
			h.log.WarnContext(r.Context(), "encode timed out", attrs...)
			writeError(w, status, "encode timed out")
		case statusClientClosedRequest:
			h.log.InfoContext(r.Context(), "client closed request", attrs...)
			writeError(w, status, "request canceled")
		case http.StatusInternalServerError:
			h.log.ErrorContext(r.Context(), "encode failed", attrs...)
			writeError(w, status, err.Error())
		default:
			h.log.InfoContext(r.Context(), "encode rejected", attrs...)
			writeError(w, status, err.Error())
		}
		return
	}

	h.log.InfoContext(r.Context(), "encode complete", append(attrs, slog.Int("container_bytes", len(out)))...)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="stream`+opts.Format.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// statusClientClosedRequest is the nginx code for a client that went away
// before the response was ready.
const statusClientClosedRequest = 499

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, pcm.ErrInvalidInput),
		errors.Is(err, container.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrInvalidWAV),
		errors.Is(err, audio.ErrFormatMismatch),
		errors.Is(err, audio.ErrUnsupportedLoop):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	enc             Encoder
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New builds a Server. A nil enc uses PipelineEncoder.
func New(cfg config.Config, enc Encoder) *Server {
	if enc == nil {
		enc = PipelineEncoder
	}
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		enc:             enc,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Handler builds the HTTP handler from the server configuration.
func (s *Server) Handler() (http.Handler, error) {
	format, err := container.ParseFormat(s.cfg.Encode.Format)
	if err != nil {
		return nil, err
	}

	handlerOpts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithEncodeWorkers(s.cfg.Encode.Workers),
		WithDefaultFormat(format),
		WithLogger(s.logger),
	}
	if s.cfg.Server.MaxBodyBytes > 0 {
		handlerOpts = append(handlerOpts, WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes))
	}
	if s.cfg.Server.RequestTimeout > 0 {
		handlerOpts = append(handlerOpts, WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second))
	}
	return NewHandler(s.enc, handlerOpts...), nil
}

func (s *Server) Start(ctx context.Context) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// Health is the body served by GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ProbeHTTP fetches /health from addr. A listen address without a host, such
// as ":8080", is probed on the loopback interface.
func ProbeHTTP(ctx context.Context, addr string) (Health, error) {
	var h Health
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return h, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return h, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return h, fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode health response: %w", err)
	}
	if h.Status != "ok" {
		return h, fmt.Errorf("server reports status %q", h.Status)
	}
	return h, nil
}
