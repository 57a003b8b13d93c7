package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// NewServer creates and configures the rweb server for the local UI and
// the offline manager API.
func NewServer() *rweb.Server {
	s := rweb.NewServer(rweb.ServerOptions{
		Address: ":8000",
		Verbose: true,
	})

	s.Use(rweb.RequestInfo)
	s.Use(CorsMiddleware)
	s.Use(LoggingMiddleware)

	SetupStaticFiles(s)
	setupRoutes(s)

	return s
}

// NewTestServer builds a server with caller-supplied options (dynamic port,
// ready channel) for integration tests.
func NewTestServer(opts rweb.ServerOptions) *rweb.Server {
	s := rweb.NewServer(opts)
	s.Use(CorsMiddleware)
	setupRoutes(s)
	return s
}

// Run starts the server.
func Run(s *rweb.Server) error {
	logger.Info("QuillNotes server starting")
	return s.Run()
}
