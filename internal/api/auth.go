package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

var ErrMissingToken = errors.New("login response carried no token")

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token    string          `json:"token"`
	Employee domain.Employee `json:"employee"`
}

// Login 成功后把会话交给会话存储
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := c.check(creds); err != nil {
		return nil, err
	}

	var result LoginResult
	if err := c.gateway.Do(ctx, http.MethodPost, "/login", creds, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, ErrMissingToken
	}

	c.sessions.Login(ctx, result.Employee, result.Token)
	return &result, nil
}

func (c *Client) Logout(ctx context.Context) {
	c.sessions.Logout(ctx)
}
