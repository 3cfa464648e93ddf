package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Route binds a method and path pattern to a handler. Path may use [http.ServeMux] wildcards such as {id}.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Handler defines a group of routes registered together, such as every backup-status endpoint.
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}
