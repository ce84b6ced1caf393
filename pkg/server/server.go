// Package server exposes the tree renderings over HTTP so a browser page can
// embed the current tree.
//
//	GET /tree.svg      SVG rendering
//	GET /tree.png      PNG rendering
//	GET /layout.json   computed geometry
//	GET /members/{id}/tree.svg, /members/{id}/layout.json
//
// Every tree endpoint accepts root, depth, q (search highlight) and selected
// query parameters.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/export"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/metrics"
)

const (
	loadTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Layout layout.Config // zero value means layout.DefaultConfig()
	Title  string
	Depth  int // default depth when the request has none; <= 0 is unlimited
	// MaxPNGPixels caps /tree.png; larger trees are scaled down to fit.
	// 0 means export.DefaultMaxPNGPixels.
	MaxPNGPixels int
}

// Server renders trees from one provider.
type Server struct {
	provider datasource.Provider
	opts     Options
	router   chi.Router
}

// New builds the router for p.
func New(p datasource.Provider, opts Options) *Server {
	if opts.Layout == (layout.Config{}) {
		opts.Layout = layout.DefaultConfig()
	}
	s := &Server{provider: p, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		target := "/tree.svg"
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		http.Redirect(w, req, target, http.StatusFound)
	})
	r.Get("/tree.svg", s.render(export.FormatSVG))
	r.Get("/tree.png", s.render(export.FormatPNG))
	r.Get("/layout.json", s.render(export.FormatJSON))
	r.Route("/members/{id}", func(r chi.Router) {
		r.Get("/tree.svg", s.render(export.FormatSVG))
		r.Get("/tree.png", s.render(export.FormatPNG))
		r.Get("/layout.json", s.render(export.FormatJSON))
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// request is the parsed form of a tree request.
type request struct {
	rootID     int
	depth      int
	query      string
	selectedID int
}

func (s *Server) parse(r *http.Request) (request, error) {
	q := r.URL.Query()
	req := request{depth: s.opts.Depth, query: q.Get("q")}

	root := chi.URLParam(r, "id")
	if root == "" {
		root = q.Get("root")
	}
	var err error
	if req.rootID, err = intParam("root", root, 0); err != nil {
		return req, err
	}
	if req.depth, err = intParam("depth", q.Get("depth"), req.depth); err != nil {
		return req, err
	}
	if req.selectedID, err = intParam("selected", q.Get("selected"), 0); err != nil {
		return req, err
	}
	if req.rootID < 0 {
		return req, fmt.Errorf("root: must not be negative")
	}
	return req, nil
}

func intParam(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, raw)
	}
	return v, nil
}

var contentTypes = map[string]string{
	export.FormatSVG:  "image/svg+xml",
	export.FormatPNG:  "image/png",
	export.FormatJSON: "application/json",
}

func (s *Server) render(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer metrics.Timer(metrics.HTTPRender)()

		req, err := s.parse(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
		defer cancel()
		root, err := s.provider.Tree(ctx, req.rootID, req.depth)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		res, style, err := export.Prepare(root, s.opts.Layout, s.opts.Title, req.query, req.selectedID)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		style.MaxPixels = s.opts.MaxPNGPixels

		var buf bytes.Buffer
		switch format {
		case export.FormatSVG:
			err = export.RenderSVG(&buf, res, style)
		case export.FormatPNG:
			err = export.RenderPNG(&buf, res, style)
		case export.FormatJSON:
			err = export.WriteLayoutJSON(&buf, res)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		debug.Log("server: %s root=%d depth=%d q=%q (%d bytes)", r.URL.Path, req.rootID, req.depth, req.query, buf.Len())
		w.Header().Set("Content-Type", contentTypes[format])
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, layout.ErrCycle), errors.Is(err, layout.ErrDepthExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
