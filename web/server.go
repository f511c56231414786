// Package web serves the volume estimator over HTTP.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/sync/semaphore"

	"go.viam.com/foodvolume/logging"
	"go.viam.com/foodvolume/volume"
)

// DefaultFOV is the field of view in degrees assumed when neither the configuration nor a
// request describes the camera.
const DefaultFOV = 70.0

// Options configures the server.
type Options struct {
	// Port to listen on. 0 picks a free port.
	Port int
	// MaxConcurrent bounds the estimations running at once. 0 means 1.
	MaxConcurrent int
	// MaxBodyBytes bounds the request size. 0 means 32 MiB.
	MaxBodyBytes int64
	// Pprof exposes the profiling handlers under /debug/pprof/.
	Pprof bool
}

// Server answers volume estimation requests.
type Server struct {
	est     *volume.Estimator
	sem     *semaphore.Weighted
	options Options
	logger  logging.Logger
}

// NewServer returns a server backed by est.
func NewServer(est *volume.Estimator, options Options, logger logging.Logger) *Server {
	if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = 1
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = 32 << 20
	}
	return &Server{
		est:     est,
		sem:     semaphore.NewWeighted(int64(options.MaxConcurrent)),
		options: options,
		logger:  logger,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	if s.options.Pprof {
		mux.HandleFunc(pat.New("/debug/pprof/"), pprof.Index)
		mux.HandleFunc(pat.New("/debug/pprof/cmdline"), pprof.Cmdline)
		mux.HandleFunc(pat.New("/debug/pprof/profile"), pprof.Profile)
		mux.HandleFunc(pat.New("/debug/pprof/symbol"), pprof.Symbol)
		mux.HandleFunc(pat.New("/debug/pprof/trace"), pprof.Trace)
	}
	mux.HandleFunc(pat.Get("/healthz"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write([]byte("ok"))
	})
	mux.Handle(pat.Post("/predict"), &predictHandler{s})
	return cors.AllowAll().Handler(mux)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.options.Port))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              listener.Addr().String(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           s.Handler(),
	}

	go func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorw("error shutting down", "error", err)
		}
	}()

	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
