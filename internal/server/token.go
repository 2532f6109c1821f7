package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// TokenResult contains the result of a browser token authorization flow.
type TokenResult struct {
	Token string
	err   error
}

func (t *TokenResult) Error() error {
	return t.err
}

// AuthorizeURL builds the Trello authorization page URL. Trello appends
// the granted token to the return URL's fragment, so the callback page
// has to lift it out client-side.
func AuthorizeURL(apiKey, returnURL string) string {
	params := url.Values{
		"key":           {apiKey},
		"name":          {"ojsync"},
		"scope":         {"read,write"},
		"expiration":    {"never"},
		"response_type": {"token"},
		"return_url":    {returnURL},
		"callback_method": {
			"fragment",
		},
	}
	return "https://trello.com/1/authorize?" + params.Encode()
}

// TokenHandler captures a Trello token handed back through the browser.
// Implements the Handler interface for registration with a Router.
//
// Trello delivers the token in the URL fragment, which never reaches the
// server, so /callback serves a small page that reads location.hash and
// forwards the token to /token along with the state value.
type TokenHandler struct {
	state      string
	resultChan chan TokenResult
	once       sync.Once
	tokenHit   bool
	mu         sync.Mutex
}

// NewTokenHandler creates a new token handler with the given state token.
// The state token should be cryptographically random for CSRF protection.
func NewTokenHandler(state string) *TokenHandler {
	return &TokenHandler{
		state:      state,
		resultChan: make(chan TokenResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *TokenHandler) Routes() []string {
	return []string{"/callback", "/token"}
}

// ServeHTTP dispatches between the fragment-lifting callback page and the
// token receiver endpoint.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/callback":
		h.serveCallback(w, r)
	case "/token":
		h.serveToken(w, r)
	default:
		http.NotFound(w, r)
	}
}

// serveCallback serves the page that moves the token from the URL
// fragment into a request the server can see.
func (h *TokenHandler) serveCallback(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorizing...</title>
</head>
<body>
    <p>Finishing authorization...</p>
    <script>
        const token = new URLSearchParams(location.hash.slice(1)).get("token") || "";
        location.replace("/token?state=%s&token=" + encodeURIComponent(token));
    </script>
</body>
</html>
`, url.QueryEscape(h.state))
}

// serveToken validates the state parameter, sends the captured token
// through the result channel, and renders the closing page.
func (h *TokenHandler) serveToken(w http.ResponseWriter, r *http.Request) {
	// Only handle the token once
	h.mu.Lock()
	if h.tokenHit {
		h.mu.Unlock()
		http.Error(w, "Token already processed", http.StatusBadRequest)
		return
	}
	h.tokenHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("invalid state parameter")
		h.Send(TokenResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		err := fmt.Errorf("authorization denied: no token returned")
		h.Send(TokenResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(TokenResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #0079bf; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the token result through the channel (only once).
func (h *TokenHandler) Send(result TokenResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *TokenHandler) Result() <-chan TokenResult {
	return h.resultChan
}
