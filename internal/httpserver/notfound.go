package httpserver

import (
	"fmt"
	"html"
	"net/http"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// renderNotFound answers an unmatched route per spec §"404 format": an HTML
// page with the required elements (code, path, optional redirect/back/
// contact links) when NotFoundSection.Enabled, else a plain-text
// "Cannot METHOD PATH".
func (s *Server) renderNotFound(req *reqres.Request, resp *reqres.Response) {
	cfg := s.notFoundCfg
	if !cfg.Enabled {
		_ = resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
		_ = resp.WriteStatus(http.StatusNotFound)
		_, _ = resp.Write([]byte(fmt.Sprintf("Cannot %s %s", req.Method, req.Path)))
		return
	}

	_ = resp.SetHeader("Content-Type", "text/html; charset=utf-8")
	_ = resp.WriteStatus(http.StatusNotFound)
	_, _ = resp.Write([]byte(renderNotFoundHTML(cfg, req.Path)))
}

func renderNotFoundHTML(cfg config.NotFoundSection, path string) string {
	title := cfg.Title
	if title == "" {
		title = "404 Not Found"
	}
	message := cfg.Message
	if message == "" {
		message = "The page you requested could not be found."
	}

	extra := ""
	if cfg.RedirectTo != "" {
		extra += fmt.Sprintf(`<p><a href="%s">Go back</a></p>`, html.EscapeString(cfg.RedirectTo))
	}
	if cfg.Contact != "" {
		extra += fmt.Sprintf(`<p>Contact: %s</p>`, html.EscapeString(cfg.Contact))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body data-theme="%s">
<h1>404</h1>
<h2>%s</h2>
<p>%s</p>
<code>%s</code>
%s
</body>
</html>`,
		html.EscapeString(title),
		html.EscapeString(cfg.Theme),
		html.EscapeString(title),
		html.EscapeString(message),
		html.EscapeString(path),
		extra,
	)
}
