// Package web serves the public HTTP surface of the cloud service: a health
// probe and the landing page a share URL opens in a browser.
package web

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

var landingTemplate = template.Must(template.New("share").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Shared Medical Record</title></head>
<body>
<h1>Shared Medical Record</h1>
{{if .Found}}<p><strong>{{.Title}}</strong> was shared by {{.Owner}}.</p>
<p>To add it to MyHealthData run:</p>
<pre>phr accept {{.URL}}</pre>
{{else}}<p>This share link is not valid or has been revoked.</p>
{{end}}</body>
</html>
`))

type templateRenderer struct {
	t *template.Template
}

func (r templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

type landingData struct {
	Found bool
	Title string
	Owner string
	URL   string
}

type Server struct {
	address  string
	store    Store
	shareURL func(token string) string
	logger   logging.Logger
	echo     *echo.Echo
}

// NewServer builds the router. shareURL turns a token back into the public
// share URL shown on the landing page.
func NewServer(address string, store Store, shareURL func(string) string, l logging.Logger) *Server {
	s := &Server{
		address:  address,
		store:    store,
		shareURL: shareURL,
		logger:   l.With("module", "http_server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = templateRenderer{t: landingTemplate}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", s.health)
	e.GET("/share/:token", s.landing)

	s.echo = e
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) landing(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.Param("token")

	p, err := s.store.SharePreview(ctx, token)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return c.Render(http.StatusNotFound, "share", landingData{})
	case err != nil:
		s.logger.Error(ctx, "share preview failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.Render(http.StatusOK, "share", landingData{
		Found: true,
		Title: p.Title,
		Owner: p.OwnerLogin,
		URL:   s.shareURL(p.Token),
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.echo.Listener = lis

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
