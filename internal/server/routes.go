package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes. Everything under /api/v1 except
// /health runs behind the auth middleware; the websocket endpoint does too,
// since sessions join their room under the authenticated subject.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := s.app.AuthMiddleware

	// Public system routes
	mux.HandleFunc("/api/v1/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// WebSocket route
	mux.Handle("/ws", authed(http.HandlerFunc(s.app.WSHandler.HandleWebSocket)))

	// API routes - Resumes
	mux.Handle("/api/v1/resumes", authed(http.HandlerFunc(s.app.ResumeHandler.CollectionHandler)))  // GET (list), POST (upload)
	mux.Handle("/api/v1/resumes/", authed(http.HandlerFunc(s.app.ResumeHandler.ItemHandler)))       // GET/DELETE /{id}

	// API routes - Job descriptions
	mux.Handle("/api/v1/jobs", authed(http.HandlerFunc(s.app.JobHandler.CollectionHandler)))  // GET (list), POST (create)
	mux.Handle("/api/v1/jobs/", authed(http.HandlerFunc(s.app.JobHandler.ItemHandler)))       // GET/DELETE /{id}

	// API routes - Matches
	mux.Handle("/api/v1/matches", authed(http.HandlerFunc(s.app.MatchHandler.CollectionHandler)))  // GET (list), POST (create)
	mux.Handle("/api/v1/matches/", authed(http.HandlerFunc(s.app.MatchHandler.ItemHandler)))       // GET /{id}

	// API routes - Quota
	mux.Handle("/api/v1/usage", authed(http.HandlerFunc(s.app.UsageHandler.GetUsageHandler)))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
