//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

// Package compile exposes the HTTP surface of the build service: a static
// index page, a toolchain version probe, and the compile endpoint that runs
// the build pipeline inside a per-request workspace.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/fridabuild/builder"
	"trpc.group/trpc-go/fridabuild/log"
	"trpc.group/trpc-go/fridabuild/workspace"
)

const (
	formFieldFile    = "file"
	formFieldSnippet = "snippet"

	// maxFormMemory caps the in-memory portion of multipart parsing.
	maxFormMemory = 32 << 20

	artifactContentType = "application/javascript"
	buildFailedPrefix   = "Build step failed:\n"
)

// BuildService runs the build pipeline. It is an interface so handlers can
// be tested without the frida toolchain on the host.
type BuildService interface {
	// Build compiles the input inside ws and returns the artifact path.
	Build(ctx context.Context, ws workspace.Workspace, in builder.Input) (string, error)
	// Version reports the installed toolchain version.
	Version(ctx context.Context) (string, error)
}

// Server serves the compile API.
type Server struct {
	router     *mux.Router
	manager    *workspace.Manager
	builder    BuildService
	addr       string
	publicDir  string
	httpServer *http.Server
}

// Option configures the Server instance.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithBuilder replaces the default toolchain builder.
func WithBuilder(b BuildService) Option {
	return func(s *Server) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithWorkspaceManager replaces the default workspace manager.
func WithWorkspaceManager(m *workspace.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.manager = m
		}
	}
}

// WithPublicDir sets the directory the static index page is served from.
func WithPublicDir(dir string) Option {
	return func(s *Server) { s.publicDir = dir }
}

// New creates a compile server. The behaviour can be tweaked via functional
// options.
func New(opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		manager:   workspace.NewManager(),
		builder:   builder.New(),
		addr:      ":8000",
		publicDir: "./public",
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", "Content-Disposition"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}
	log.Infof("starting compile server at %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("http server not running")
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop compile server: %w", err)
	}
	log.Infof("stopped compile server at %s", s.addr)
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/frida_ver", s.handleFridaVersion).Methods(http.MethodGet)
	s.router.HandleFunc("/compile", s.handleCompile).Methods(http.MethodPost)
	s.router.HandleFunc("/compile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)
}

// ---- Handlers -----------------------------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.publicDir, "index.html"))
}

func (s *Server) handleFridaVersion(w http.ResponseWriter, r *http.Request) {
	ver, err := s.builder.Version(r.Context())
	if err != nil {
		s.writeBuildError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(ver))
}

// handleCompile accepts a multipart form with exactly one of `file` (a
// script or a zip of scripts containing index.ts) and `snippet` (inline
// script text), builds the agent and streams back the compiled bundle.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleCompile called: path=%s", r.URL.Path)

	in, err := parseCompileInput(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.IsZip() {
		// Reject archives without an entry point before any external
		// command runs.
		if err := builder.ValidateZip(in.Content); err != nil {
			s.writeBuildError(w, err)
			return
		}
	}

	ws, err := s.manager.Allocate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.manager.Release(ws)

	// A client disconnect must not interrupt a running toolchain
	// invocation, so the build runs on a detached context.
	artifact, err := s.builder.Build(newDetachedContext(r.Context()), ws, in)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}

	// Read before the deferred release destroys the workspace.
	data, err := os.ReadFile(artifact)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", artifactContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", workspace.ArtifactName))
	_, _ = w.Write(data)
}

// parseCompileInput validates the multipart form: exactly one of `file` and
// `snippet` must be supplied.
func parseCompileInput(r *http.Request) (builder.Input, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil &&
		!errors.Is(err, http.ErrNotMultipart) {
		return builder.Input{}, fmt.Errorf("parse form: %w", err)
	}

	snippet := r.FormValue(formFieldSnippet)
	file, header, err := r.FormFile(formFieldFile)
	hasFile := err == nil
	if hasFile {
		defer file.Close()
	}

	if hasFile && snippet != "" {
		return builder.Input{}, errors.New("Provide either a file or a snippet.")
	}
	if !hasFile && snippet == "" {
		return builder.Input{}, errors.New(
			"No input provided. Upload a .ts file or a zip file containing " +
				"multiple .ts scripts or provide a snippet.")
	}

	if !hasFile {
		return builder.Input{Snippet: snippet}, nil
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return builder.Input{}, fmt.Errorf("read upload: %w", err)
	}
	return builder.Input{FileName: header.Filename, Content: content}, nil
}

// writeBuildError maps pipeline failures onto the HTTP error taxonomy:
// missing entry point is the caller's fault, a non-zero toolchain exit
// surfaces the captured output, anything else is an internal error.
func (s *Server) writeBuildError(w http.ResponseWriter, err error) {
	if errors.Is(err, builder.ErrMissingEntry) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var stepErr *builder.StepError
	if errors.As(err, &stepErr) {
		http.Error(w, buildFailedPrefix+stepErr.Output, http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// detachedContext drops cancellation and deadlines while preserving values,
// so HTTP-level timeouts or client disconnects never kill an in-flight
// subprocess.
type detachedContext struct {
	context.Context
}

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }

func (detachedContext) Done() <-chan struct{} { return nil }

func (detachedContext) Err() error { return nil }

func newDetachedContext(ctx context.Context) context.Context {
	return detachedContext{Context: ctx}
}
