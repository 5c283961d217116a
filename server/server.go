// Package server exposes runs over HTTP.
//
// POST /api/chat starts one run per request and streams its chunks in the
// requested wire format. A client that disconnects mid-stream closes the run,
// which gives the agent the configured grace period to stop on its own.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/assistantstream"
	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/encoding"
	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/run"
	"github.com/hupe1980/assistantstream/session"
)

// Agent answers a conversation inside a run.
type Agent interface {
	Run(ctx context.Context, c *run.Controller, messages []model.Message) error
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, c *run.Controller, messages []model.Message) error

// Run implements Agent.
func (f AgentFunc) Run(ctx context.Context, c *run.Controller, messages []model.Message) error {
	return f(ctx, c, messages)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []model.Message `json:"messages"`
	// State seeds the run state.
	State any `json:"state,omitempty"`
	// Format selects the wire format; the "format" query parameter is used
	// when empty.
	Format string `json:"format,omitempty"`
	// ThreadID continues a stored conversation when the handler has a
	// session store.
	ThreadID string `json:"threadId,omitempty"`
}

// Options configures the handler.
type Options struct {
	// Runs creates the runs; defaults to assistantstream.New().
	Runs *assistantstream.AssistantStream

	// DefaultFormat applies when a request names none.
	DefaultFormat string

	// CloseTimeout bounds how long a disconnected request waits for its run
	// to shut down.
	CloseTimeout time.Duration

	// Sessions enables conversation threads when set.
	Sessions session.Store

	// Gatherer enables GET /metrics when set.
	Gatherer prometheus.Gatherer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

const maxBodyBytes = 4 << 20

type server struct {
	agent         Agent
	runs          *assistantstream.AssistantStream
	sessions      session.Store
	defaultFormat string
	closeTimeout  time.Duration
	logger        logging.Logger
}

// New returns the HTTP handler serving agent.
func New(agent Agent, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		DefaultFormat: encoding.FormatDataStream,
		CloseTimeout:  5 * time.Second,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Runs == nil {
		opts.Runs = assistantstream.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &server{
		agent:         agent,
		runs:          opts.Runs,
		sessions:      opts.Sessions,
		defaultFormat: opts.DefaultFormat,
		closeTimeout:  opts.CloseTimeout,
		logger:        opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/api/chat", s.chat)
	if s.sessions != nil {
		r.Get("/api/threads/{threadID}", s.getThread)
		r.Delete("/api/threads/{threadID}", s.deleteThread)
	}

	return r
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	// Reading to EOF lets the server notice a client disconnect.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		s.logger.Warn("server.chat.bad_request", "error", err)
		return
	}
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		s.logger.Warn("server.chat.bad_request", "error", err)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}

	format := req.Format
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		format = s.defaultFormat
	}
	enc, err := encoding.ForFormat(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	messages := req.Messages
	if req.ThreadID != "" {
		if s.sessions == nil {
			http.Error(w, "threads are not enabled", http.StatusBadRequest)
			return
		}
		sess, err := s.sessions.Get(r.Context(), req.ThreadID)
		switch {
		case err == nil:
			messages = append(sess.Messages, req.Messages...)
		case !errors.Is(err, session.ErrNotFound):
			http.Error(w, "failed to load thread", http.StatusInternalServerError)
			s.logger.Error("server.thread.load", "thread_id", req.ThreadID, "error", err)
			return
		}
	}

	// The run outlives a disconnected request until Close has shut it down.
	stream := s.runs.CreateRun(context.WithoutCancel(r.Context()), func(ctx context.Context, c *run.Controller) error {
		return s.agent.Run(ctx, c, messages)
	}, func(o *run.Options) {
		o.InitialState = req.State
	})

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.closeTimeout)
		defer cancel()
		if err := stream.Close(ctx); err != nil {
			s.logger.Warn("server.chat.close", "run_id", stream.ID(), "error", err)
		}
	}()

	w.Header().Set("Content-Type", enc.ContentType())
	for k, v := range enc.Headers() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	start := time.Now()
	var answer strings.Builder
	for stream.Next(r.Context()) {
		if c, ok := stream.Current().(chunk.TextDelta); ok && c.ParentID == "" {
			answer.WriteString(c.TextDelta)
		}
		if err := enc.Encode(w, stream.Current()); err != nil {
			s.logger.Warn("server.chat.write", "run_id", stream.ID(), "error", err)
			return
		}
		flush()
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			s.logger.Info("server.chat.disconnected", "run_id", stream.ID(), "duration_ms", time.Since(start).Milliseconds())
			return
		}
		// Already reported to the client as an error chunk.
		s.logger.Debug("server.chat.run_error", "run_id", stream.ID(), "error", err)
	} else if req.ThreadID != "" {
		s.saveThread(r.Context(), req.ThreadID, req.Messages, answer.String())
	}

	if err := enc.Finish(w); err != nil {
		s.logger.Warn("server.chat.write", "run_id", stream.ID(), "error", err)
		return
	}
	flush()

	s.logger.Debug("server.chat.complete", "run_id", stream.ID(), "duration_ms", time.Since(start).Milliseconds())
}

func (s *server) saveThread(ctx context.Context, id string, messages []model.Message, answer string) {
	exchanged := append(slices.Clone(messages), model.Message{Role: model.RoleAssistant, Content: answer})
	if err := s.sessions.Append(context.WithoutCancel(ctx), id, exchanged...); err != nil {
		s.logger.Error("server.thread.save", "thread_id", id, "error", err)
	}
}

func (s *server) getThread(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "threadID"))
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load thread", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess); err != nil {
		s.logger.Warn("server.thread.write", "error", err)
	}
}

func (s *server) deleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "threadID")); err != nil {
		http.Error(w, "failed to delete thread", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
