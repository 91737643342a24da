package httpapi

import (
	"errors"
	"html/template"
	"net/http"

	appAuth "github.com/netgate/netgate/internal/application/auth"
)

// The fallback pages are deliberately plain HTML with no scripts or
// external assets: captive-portal mini browsers on phones render them
// where the SPA would show a blank page.
var fallbackTpl = template.Must(template.New("fallback").Parse(`
{{define "login"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Network Sign-In</title>
</head>
<body>
  <h2>Network Sign-In</h2>
  <p>This network requires authentication before it can be used.</p>
  {{if .Error}}<p><strong>{{.Error}}</strong></p>{{end}}
  <form method="POST" action="/api/auth/fallback">
    <input type="hidden" name="client_ip" value="{{.ClientIP}}">
    <p><label>Username <input type="text" name="username" autocomplete="username"></label></p>
    <p><label>Password <input type="password" name="password" autocomplete="current-password"></label></p>
    <p><button type="submit">Sign in</button></p>
  </form>
</body>
</html>{{end}}

{{define "result"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Network Sign-In</title>
</head>
<body>
  {{if .Success}}
  <h2>You are connected</h2>
  <p>Device {{.ClientIP}} is now authenticated. You can close this page.</p>
  {{else}}
  <h2>Sign-in failed</h2>
  <p>{{.Error}}</p>
  <p><a href="/api/auth/fallback?client_ip={{.ClientIP}}">Try again</a></p>
  {{end}}
</body>
</html>{{end}}
`))

type fallbackData struct {
	ClientIP string
	Success  bool
	Error    string
}

func (s *Server) renderFallback(w http.ResponseWriter, name string, data fallbackData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := fallbackTpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("fallback render failed")
	}
}

func (s *Server) fallbackForm(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("client_ip")
	if addr == "" {
		addr = clientAddress(r)
	}
	s.renderFallback(w, "login", fallbackData{ClientIP: addr})
}

func (s *Server) fallbackSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderFallback(w, "result", fallbackData{Error: "malformed form submission"})
		return
	}

	addr := r.PostFormValue("client_ip")
	if addr == "" {
		addr = clientAddress(r)
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		s.renderFallback(w, "login", fallbackData{
			ClientIP: addr,
			Error:    "Username and password are required.",
		})
		return
	}

	_, err := s.authSvc.Login(r.Context(), addr, username, password, userAgent(r))
	if err != nil {
		var locked *appAuth.LockedError
		msg := "Something went wrong, please try again."
		switch {
		case errors.As(err, &locked):
			msg = "Too many failed attempts. Please wait a few minutes and try again."
		case errors.Is(err, appAuth.ErrInvalidCredentials):
			msg = "Invalid username or password."
		default:
			s.logger.Error().Err(err).Str("address", addr).Msg("fallback login failed internally")
		}
		s.renderFallback(w, "result", fallbackData{ClientIP: addr, Error: msg})
		return
	}

	s.renderFallback(w, "result", fallbackData{ClientIP: addr, Success: true})
}
