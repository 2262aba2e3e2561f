package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"strava-effort/internal/store"
)

const (
	// CallbackPort is the default port for the OAuth callback server
	CallbackPort = 8089
	// AuthTimeout is how long to wait for the user to complete auth
	AuthTimeout = 5 * time.Minute
)

// CallbackConfig configures the interactive authorization flow.
type CallbackConfig struct {
	ClientID     string
	ClientSecret string
	Port         int       // 0 means CallbackPort
	Prompt       io.Writer // receives the authorization URL
}

// Authenticate runs the authorization-code flow with a local callback server
// and stores the resulting credentials through m.
func Authenticate(ctx context.Context, m *Manager, cfg CallbackConfig) (*store.Credentials, error) {
	// Generate state for CSRF protection
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	port := cfg.Port
	if port == 0 {
		port = CallbackPort
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	// Create server mux (don't use DefaultServeMux)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codeChan, errChan))

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	defer shutdownServer(server)

	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			sendErr(errChan, fmt.Errorf("server error: %w", err))
		}
	}()

	redirect := fmt.Sprintf("http://localhost:%d/callback", port)
	authURL := m.AuthorizeURL(cfg.ClientID, redirect, state)
	if cfg.Prompt != nil {
		fmt.Fprintf(cfg.Prompt, "\nTo authenticate with Strava, open this URL in your browser:\n\n  %s\n\nWaiting for authentication...\n", authURL)
	}
	m.log.Info().Str("redirect_uri", redirect).Msg("waiting for authorization callback")

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-time.After(AuthTimeout):
		return nil, fmt.Errorf("authentication timeout after %v", AuthTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return m.ExchangeAuthorizationCode(ctx, code, cfg.ClientID, cfg.ClientSecret)
}

// callbackHandler accepts the provider redirect, checks state and hands the
// authorization code to codeChan.
func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			sendErr(errChan, errors.New("state mismatch - possible CSRF attack"))
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}

		if errMsg := q.Get("error"); errMsg != "" {
			sendErr(errChan, fmt.Errorf("authorization denied: %s", errMsg))
			http.Error(w, "Authentication failed", http.StatusBadRequest)
			return
		}

		code := q.Get("code")
		if code == "" {
			sendErr(errChan, errors.New("no code in callback"))
			http.Error(w, "No authorization code", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 20vh;">
<h1>Connected to Strava</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

		select {
		case codeChan <- code:
		default:
		}
	})
}

func sendErr(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

// generateState creates a random state string for CSRF protection
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownServer gracefully shuts down the HTTP server
func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
