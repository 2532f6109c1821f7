// Package server provides HTTP routing, middleware, and browser token capture for the CLI setup flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Token Capture Handler
//
// [TokenHandler] implements the Trello browser authorization flow.
//
// Trello hands the granted token back in the return URL's fragment, which browsers
// never send to the server. The /callback page lifts the token out of location.hash
// client-side and forwards it to /token, where the handler validates the state
// parameter (CSRF protection) and sends the result through a channel.
//
// It only processes one token to prevent replay attacks.
//
// # Current Usage
//
// When the user runs `ojsync setup trello`, a temporary HTTP server starts on
// localhost:3000, the authorization page opens in the browser, and the server
// shuts down after receiving the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
