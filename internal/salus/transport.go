package salus

import (
	"net/http"

	"golang.org/x/oauth2"
)

// authorized returns an HTTP client that attaches the session's bearer token.
// It shares the base client's transport, timeout, redirect policy and jar.
func (c *Client) authorized(session Session) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(session.oauthToken()),
			Base:   base,
		},
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
}

func (s Session) oauthToken() *oauth2.Token {
	// No expiry: the cloud does not report one we rely on
	return &oauth2.Token{
		AccessToken: s.Token,
		TokenType:   "Bearer",
	}
}
