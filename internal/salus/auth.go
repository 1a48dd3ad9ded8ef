package salus

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
)

// Login signs in with the client's credentials and returns a new session.
// The session replaces any session the client was holding.
func (c *Client) Login(ctx context.Context) (Session, error) {
	payload := signInRequest{
		User: signInUser{
			Email:    c.creds.Username,
			Password: c.creds.Password,
		},
	}

	resp, err := c.do(ctx, c.httpClient, http.MethodPost, signInPath, payload)
	if err != nil {
		return Session{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Session{}, NewAuthError(resp.StatusCode, "sign-in rejected (check username and password)")
	case !isSuccess(resp.StatusCode):
		return Session{}, NewHTTPError(resp.StatusCode, signInPath, "sign-in failed with status "+strconv.Itoa(resp.StatusCode))
	}

	var out signInResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return Session{}, NewParseError("failed to parse sign-in response", signInPath, err)
	}
	if out.AccessToken == "" {
		return Session{}, NewAuthError(resp.StatusCode, "sign-in response carried no access token")
	}

	c.session = Session{
		Token:    out.AccessToken,
		IssuedAt: c.now(),
	}

	c.log().Debug("Signed in",
		zap.String("user", c.creds.Username),
		zap.String("token", logging.RedactToken(out.AccessToken)),
	)

	return c.session, nil
}
