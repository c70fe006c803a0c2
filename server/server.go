package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/xhad/grounder/pkg/breaker"
)

// Server exposes the document and answering APIs over HTTP.
type Server struct {
	app  *fiber.App
	addr string
}

func New(addr string, documents DocumentService, answers AnswerService, cb *breaker.Breaker) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "grounder",
		ErrorHandler: ErrorHandler,
	})

	docHandler := NewDocumentHandler(documents)
	askHandler := NewAskHandler(answers)
	checkHandler := NewCheckHandler(cb)

	api := app.Group("/api/v1")
	api.Post("/documents", docHandler.HandleCreate)
	api.Get("/documents", docHandler.HandleSearch)
	api.Get("/documents/:id", docHandler.HandleGet)
	api.Put("/documents/:id", docHandler.HandleUpdate)
	api.Delete("/documents/:id", docHandler.HandleDelete)
	api.Post("/ask", askHandler.HandleAsk)

	app.Get("/check/healthy", checkHandler.HandleHealthy)
	app.Post("/check/breaker/reset", checkHandler.HandleBreakerReset)

	return &Server{app: app, addr: addr}
}

// App returns the underlying fiber application, used by tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Run() error {
	log.Printf("[SERVER] listening on %s", s.addr)
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
