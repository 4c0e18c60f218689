package petshop

import (
	"context"
	"errors"
	"net/http"

	"petagenda/internal/models"
)

var ErrNoToken = errors.New("login response carried no token")

type loginResponse struct {
	Token  string          `json:"token"`
	Access string          `json:"access"`
	User   models.Operator `json:"user"`
}

// Login exchanges credentials for a bearer token. Backends answer with either
// "token" or a JWT-style "access" field.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, models.Operator, error) {
	var resp loginResponse
	if err := c.do(WithToken(ctx, ""), http.MethodPost, "/auth/login/", nil, creds, &resp); err != nil {
		return "", models.Operator{}, err
	}

	token := resp.Token
	if token == "" {
		token = resp.Access
	}
	if token == "" {
		return "", models.Operator{}, ErrNoToken
	}
	if resp.User.Email == "" {
		resp.User.Email = creds.Email
	}
	return token, resp.User, nil
}
