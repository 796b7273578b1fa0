package oidcclient

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local OIDC provider which makes writing client tests
// much easier: it serves discovery (including an end_session_endpoint),
// /auth, /token (authorization_code and refresh_token grants), and /certs
// over TLS, issuing ECDSA-signed JWTs carrying whatever claims a test
// configures.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks *jose.JSONWebKeySet

	mu                   sync.Mutex
	clientID             string
	clientSecret         string
	expectedAuthCode     string
	expectedAuthNonce    string
	expectedRefreshToken string
	rotatedRefreshToken  string
	replySubject         string
	customClaims         map[string]interface{}
	tokenTTL             time.Duration
	omitIDToken          bool
	omitRefreshToken     bool

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider on a random local
// port. The server is torn down with t.Cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:            t,
		replySubject: "alice@example.com",
		tokenTTL:     1 * time.Hour,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()
	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Addr returns the provider's base URL, suitable as a config authority.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate for the provider's HTTPS
// server, suitable as a config ProviderCA.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetClientCreds configures the client information the provider checks
// during the flows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code returned from /auth and the
// only code /token accepts.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce configures the nonce /auth requires. The issued
// id_token always echoes the request's nonce.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetRefreshTokens configures the refresh token issued with the code
// exchange and the rotated one issued by a refresh grant.
func (p *TestProvider) SetRefreshTokens(issued, rotated string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedRefreshToken = issued
	p.rotatedRefreshToken = rotated
}

// SetReplySubject configures the issued id_token's subject.
func (p *TestProvider) SetReplySubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetCustomClaims lets you set claims (roles, email, permissions...) to
// embed in the issued JWTs.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetTokenTTL configures the lifetime of issued tokens.
func (p *TestProvider) SetTokenTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenTTL = ttl
}

// OmitIDTokens forces an error state where /token does not return an
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitRefreshTokens makes /token issue no refresh token.
func (p *TestProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefreshToken = true
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// issueTokens signs an id_token/access_token pair echoing nonce (when not
// empty) and the configured custom claims. Callers must hold p.mu.
func (p *TestProvider) issueTokens(nonce string) (idToken, accessToken string) {
	now := time.Now()
	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.Addr(),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(p.tokenTTL)),
		Audience:  jwt.Audience{p.clientID},
	}
	privateClaims := map[string]interface{}{}
	for k, v := range p.customClaims {
		privateClaims[k] = v
	}
	if nonce != "" {
		privateClaims["nonce"] = nonce
	}
	signed := TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, privateClaims)
	return signed, signed
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := struct {
			Issuer             string `json:"issuer"`
			AuthEndpoint       string `json:"authorization_endpoint"`
			TokenEndpoint      string `json:"token_endpoint"`
			JWKSURI            string `json:"jwks_uri"`
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + "/auth",
			TokenEndpoint:      p.Addr() + "/token",
			JWKSURI:            p.Addr() + "/certs",
			EndSessionEndpoint: p.Addr() + "/end-session",
		}
		if err := p.writeJSON(w, &reply); err != nil {
			return
		}

	case "/auth":
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		nonce := qv.Get("nonce")
		if p.expectedAuthNonce != "" && p.expectedAuthNonce != nonce {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}

		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}

		redirectURI += "?state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/certs":
		if req.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := p.writeJSON(w, p.jwks); err != nil {
			return
		}

	case "/token":
		if req.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var nonce string
		switch req.FormValue("grant_type") {
		case "authorization_code":
			if req.FormValue("code") != p.expectedAuthCode {
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
				return
			}
			nonce = p.expectedAuthNonce
		case "refresh_token":
			if req.FormValue("refresh_token") != p.expectedRefreshToken {
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected refresh token")
				return
			}
		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		}

		idToken, accessToken := p.issueTokens(nonce)

		reply := struct {
			AccessToken  string `json:"access_token"`
			IDToken      string `json:"id_token,omitempty"`
			RefreshToken string `json:"refresh_token,omitempty"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
		}{
			AccessToken: accessToken,
			IDToken:     idToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(p.tokenTTL.Seconds()),
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		if !p.omitRefreshToken {
			switch req.FormValue("grant_type") {
			case "authorization_code":
				reply.RefreshToken = p.expectedRefreshToken
			case "refresh_token":
				reply.RefreshToken = p.rotatedRefreshToken
			}
		}
		if err := p.writeJSON(w, &reply); err != nil {
			return
		}

	case "/end-session":
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
