// identity-demo is a small server showing the managers wired together: an
// oidcclient transport behind a session.Manager, a sqlite-persisted
// theme.Manager, and a Registry owning both.
//
// Configuration comes from the environment (or a .env file):
//
//	OIDC_AUTHORITY      the provider's issuer URL (required)
//	OIDC_CLIENT_ID      the relying party id (required)
//	OIDC_CLIENT_SECRET  the relying party secret (optional, PKCE-only without)
//	PORT                listen port (default 3000)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	identity "github.com/omnifex/identity"
	"github.com/omnifex/identity/oidcclient"
	"github.com/omnifex/identity/session"
	"github.com/omnifex/identity/theme"
	"github.com/omnifex/identity/theme/sqlitestore"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "identity-demo",
		Level: hclog.Debug,
	})
	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger) error {
	// a missing .env file is fine; the environment may carry everything
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to load .env: %w", err)
	}

	authority := os.Getenv("OIDC_AUTHORITY")
	clientID := os.Getenv("OIDC_CLIENT_ID")
	if authority == "" || clientID == "" {
		return fmt.Errorf("OIDC_AUTHORITY and OIDC_CLIENT_ID must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	cfg, err := session.NewConfig(
		authority,
		clientID,
		fmt.Sprintf("http://localhost:%s/callback", port),
		session.WithClientSecret(session.ClientSecret(os.Getenv("OIDC_CLIENT_SECRET"))),
		session.WithScopes("profile", "email"),
		session.WithPostLogoutRedirectURL(fmt.Sprintf("http://localhost:%s/", port)),
		session.WithLogger(logger.Named("session")),
	)
	if err != nil {
		return err
	}

	sessionStore, err := oidcclient.NewFileStore("identity-demo.session.json")
	if err != nil {
		return err
	}
	ctx := context.Background()
	transport, err := oidcclient.New(ctx, cfg,
		oidcclient.WithStore(sessionStore),
		oidcclient.WithLogger(logger.Named("oidc")),
	)
	if err != nil {
		return err
	}
	defer transport.Close()

	themeStore, err := sqlitestore.Open("identity-demo.db")
	if err != nil {
		return err
	}
	defer themeStore.Close()

	reg := identity.NewRegistry()
	defer reg.Reset()

	mgr, err := reg.InitSession(cfg, transport)
	if err != nil {
		return err
	}
	tm, err := reg.InitTheme(themeStore, theme.NewStaticSignal(false),
		theme.WithLogger(logger.Named("theme")),
	)
	if err != nil {
		return err
	}

	mgr.Subscribe(func(snap session.Snapshot) {
		logger.Debug("session changed",
			"authenticated", snap.IsAuthenticated,
			"loading", snap.IsLoading,
			"error", snap.Error,
		)
	})

	<-mgr.Initialized()
	logger.Info("starting", "port", port, "authenticated", mgr.IsAuthenticated())
	return http.ListenAndServe(":"+port, newRouter(mgr, tm))
}

func newRouter(mgr *session.Manager, tm *theme.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		palette := "light"
		if tm.IsDark() {
			palette = "dark"
		}
		if u := mgr.User(); u != nil {
			fmt.Fprintf(w, "<p>signed in as %s (%s theme)</p>", u.Subject, palette)
			fmt.Fprintf(w, `<p><a href="/logout">logout</a> | <a href="/theme/toggle">toggle theme</a></p>`)
			return
		}
		if errMsg := mgr.Err(); errMsg != "" {
			fmt.Fprintf(w, "<p>%s</p>", errMsg)
		}
		fmt.Fprintf(w, `<p><a href="/login">login</a> (%s theme)</p>`, palette)
	})

	r.Get("/login", func(w http.ResponseWriter, req *http.Request) {
		authURL := mgr.Login(req.Context(), "/")
		if authURL == "" {
			http.Redirect(w, req, "/", http.StatusFound)
			return
		}
		http.Redirect(w, req, authURL, http.StatusFound)
	})

	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		returnURL, err := mgr.HandleCallback(req.Context(), req.URL.String())
		if err != nil || returnURL == "" {
			returnURL = "/"
		}
		http.Redirect(w, req, returnURL, http.StatusFound)
	})

	r.Get("/logout", func(w http.ResponseWriter, req *http.Request) {
		logoutURL := mgr.Logout(req.Context())
		if logoutURL == "" {
			logoutURL = "/"
		}
		http.Redirect(w, req, logoutURL, http.StatusFound)
	})

	r.Get("/theme/toggle", func(w http.ResponseWriter, req *http.Request) {
		tm.ToggleTheme()
		http.Redirect(w, req, "/", http.StatusFound)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "healthy", "service": "identity-demo"}`)
	})

	return r
}
