package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// StreamHandler serves long-lived connections that must bypass request
// timeouts and body buffering.
type StreamHandler interface {
	RegisterStreamRoutes(*httprouter.Router)
	// StreamPatterns lists the ServeMux patterns the stream routes live under.
	StreamPatterns() []string
}

// Worker is a background loop that runs until its context is cancelled.
type Worker interface {
	Name() string
	Start(ctx context.Context) error
}
