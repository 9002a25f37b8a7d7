package presence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nowcast-run/agent/internal/httputil"
	"github.com/nowcast-run/agent/internal/ipc"
	"github.com/nowcast-run/agent/internal/secmem"
)

var oauthHTTPClient = &http.Client{Timeout: 15 * time.Second}

// sendFn writes a Frame command and waits for the response carrying a
// matching nonce, exactly the shape of openAndServe's sendAndAwait.
type sendFn func(cmd string, args any) (*ipc.Packet, error)

// authenticate loads the stored token, authorizes or refreshes it as
// needed, persists the possibly-new token, and returns the access
// token to send in the AUTHENTICATE command.
func (c *Conn) authenticate(send sendFn) (string, error) {
	tok, err := c.store.Load(c.slot)
	if err != nil {
		return "", fmt.Errorf("load stored token: %w", err)
	}

	now := time.Now()
	switch {
	case tok.expired(now):
		tok, err = c.authorize(send)
		if err != nil {
			return "", err
		}
	case tok.needsRefresh(now):
		tok, err = c.refresh(tok)
		if err != nil {
			return "", err
		}
	}

	if err := c.store.Save(c.slot, tok); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}

	return tok.AccessToken.String(), nil
}

func (c *Conn) authorize(send sendFn) (*Token, error) {
	resp, err := send("AUTHORIZE", authorizeArgs{
		ClientID: c.clientID,
		Scopes:   []string{"rpc", "rpc.activities.write"},
	})
	if err != nil {
		return nil, fmt.Errorf("AUTHORIZE request: %w", err)
	}

	var parsed authorizeResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil || parsed.Data.Code == "" {
		return nil, fmt.Errorf("parse AUTHORIZE response: %w", err)
	}

	return c.exchangeCode(parsed.Data.Code)
}

func (c *Conn) exchangeCode(code string) (*Token, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {c.clientID},
		"redirect_uri": {"http://localhost"},
	}
	return c.tokenRequest(form)
}

func (c *Conn) refresh(tok *Token) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken.String()},
	}
	return c.tokenRequest(form)
}

// tokenRequest performs the manual form-encoded OAuth exchange against
// c.tokenURL, via httputil.Do for retry/backoff on transient network
// and 5xx/429 failures (golang.org/x/oauth2's token types aren't used
// directly since the presence server's endpoint isn't a standard OIDC
// discovery document; oauth2 would buy us nothing over a hand-built
// form POST here, see DESIGN.md).
func (c *Conn) tokenRequest(form url.Values) (*Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	headers := http.Header{
		"Content-Type":  {"application/x-www-form-urlencoded"},
		"Authorization": {"Basic " + basicAuth(c.clientID, c.clientSecret)},
	}

	resp, err := httputil.Do(ctx, oauthHTTPClient, http.MethodPost, c.tokenURL, []byte(form.Encode()), headers, httputil.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	return &Token{
		AccessToken:  secmem.NewSecureString(payload.AccessToken),
		RefreshToken: secmem.NewSecureString(payload.RefreshToken),
		ExpiresAt:    time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
