package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Login exchanges credentials for an access token. On success the token is
// handed to the client's Credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"email":    strings.TrimSpace(email),
			"password": password,
		},
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("login")
	}

	res := gjson.ParseBytes(body)
	out := &LoginResult{
		AccessToken: res.Get("access_token").String(),
		User:        parseUser(res.Get("user")),
	}
	if out.AccessToken != "" && c.creds != nil {
		if err := c.creds.SetToken(out.AccessToken); err != nil {
			return nil, errors.Wrap(err, "failed to store access token")
		}
	}
	return out, nil
}

// CreateUser registers a new account (admin only). The email is trimmed and
// lower-cased before validation.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if err := c.check(u); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/admin/users",
		body:   u,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("create user")
	}
	user := parseUser(gjson.GetBytes(body, "user"))
	return &user, nil
}
