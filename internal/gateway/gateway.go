// Package gateway is the HTTP front-end: it serves the static chat pages and
// turns form submissions into relay frames.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/webchat/webchat/internal/config"
	"github.com/webchat/webchat/internal/message"
	"github.com/webchat/webchat/pkg/logger"
)

const (
	contentTypeHTML  = "text/html; charset=utf-8"
	contentTypeCSS   = "text/css; charset=utf-8"
	contentTypePNG   = "image/png"
	contentTypePlain = "text/plain; charset=utf-8"
)

// Sender forwards one chat message to the relay.
type Sender interface {
	Send(ctx context.Context, m message.ChatMessage) error
}

// Gateway owns the gin engine and its dependencies. Each HTTP connection is
// served on its own goroutine by net/http; handlers share no mutable state.
type Gateway struct {
	templatesDir string
	staticDir    string
	sender       Sender
	guards       []gin.HandlerFunc
	log          zerolog.Logger
	engine       *gin.Engine
}

type Option func(*Gateway)

// WithSubmitGuard runs h before the POST /message handler, e.g. a rate limiter.
func WithSubmitGuard(h gin.HandlerFunc) Option {
	return func(g *Gateway) { g.guards = append(g.guards, h) }
}

func New(static config.StaticConfig, sender Sender, opts ...Option) *Gateway {
	g := &Gateway{
		templatesDir: static.TemplatesDir,
		staticDir:    static.StaticDir,
		sender:       sender,
		log:          logger.With("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.engine = g.routes()
	return g
}

func (g *Gateway) Handler() http.Handler { return g.engine }

func (g *Gateway) routes() *gin.Engine {
	r := gin.New()
	// only the exact paths below exist; no redirects to near matches
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.HandleMethodNotAllowed = false
	r.Use(logger.GinMiddleware(g.log), gin.Recovery())

	home := g.serveFile(filepath.Join(g.templatesDir, "index.html"), contentTypeHTML)
	r.GET("/", home)
	r.GET("/index", home)
	r.GET("/index.html", home)

	form := g.serveFile(filepath.Join(g.templatesDir, "message.html"), contentTypeHTML)
	r.GET("/message", form)
	r.GET("/message.html", form)

	r.GET("/static/style.css", g.serveFile(filepath.Join(g.staticDir, "style.css"), contentTypeCSS))
	r.GET("/static/logo.png", g.serveFile(filepath.Join(g.staticDir, "logo.png"), contentTypePNG))

	submit := append(append([]gin.HandlerFunc{}, g.guards...), g.submit)
	r.POST("/message", submit...)

	r.NoRoute(g.notFound)
	return r
}

// ListenAndServe serves on addr until ctx is done. Shutdown is abrupt: open
// connections are closed rather than drained.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", addr, err)
	}
	return g.Serve(ctx, ln)
}

func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           g.engine,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() { _ = srv.Close() })
	defer stop()

	g.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}
