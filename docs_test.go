package identity_test

import (
	"context"
	"fmt"
	"net/http"

	identity "github.com/omnifex/identity"
	"github.com/omnifex/identity/oidcclient"
	"github.com/omnifex/identity/session"
	"github.com/omnifex/identity/theme"
)

func Example() {
	ctx := context.Background()

	// Create a new Config
	cfg, err := session.NewConfig(
		"https://your-issuer.com/",
		"your_client_id",
		"http://localhost:3000/callback",
		session.WithScopes("profile", "email"),
	)
	if err != nil {
		// handle error
	}

	// Create the production transport, which discovers the provider
	transport, err := oidcclient.New(ctx, cfg)
	if err != nil {
		// handle error
	}
	defer transport.Close()

	// A Registry owns the process's managers
	reg := identity.NewRegistry()
	defer reg.Reset()

	mgr, err := reg.InitSession(cfg, transport)
	if err != nil {
		// handle error
	}
	<-mgr.Initialized()

	// React to every session state change
	unsubscribe := mgr.Subscribe(func(snap session.Snapshot) {
		fmt.Println("authenticated: ", snap.IsAuthenticated)
	})
	defer unsubscribe()

	// Kick off a login and redirect the user to the provider
	authURL := mgr.Login(ctx, "/dashboard")
	fmt.Println("open url to kick-off authentication: ", authURL)

	// Complete the flow from the provider's callback redirect
	callbackHandler := func(w http.ResponseWriter, r *http.Request) {
		returnURL, err := mgr.HandleCallback(r.Context(), r.URL.String())
		if err != nil {
			// handle error
		}
		http.Redirect(w, r, returnURL, http.StatusFound)
	}
	http.HandleFunc("/callback", callbackHandler)

	// The theme manager lives alongside the session
	tm, err := reg.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
	if err != nil {
		// handle error
	}
	tm.ToggleTheme()
}
