package client

import (
	"context"

	"freezefit/pkg/auth"
	"freezefit/pkg/model"
)

type AuthClient struct {
	http *HttpClient
}

// Register creates an account and authenticates the client as the new user.
func (c *AuthClient) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.http.Post(ctx, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, err
	}
	c.use(resp.Tokens)
	return &resp, nil
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.http.Post(ctx, "/api/v1/auth/login", &model.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.use(resp.Tokens)
	return &resp, nil
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	var pair auth.TokenPair
	if err := c.http.Post(ctx, "/api/v1/auth/refresh", &model.RefreshRequest{RefreshToken: refreshToken}, &pair); err != nil {
		return nil, err
	}
	c.use(&pair)
	return &pair, nil
}

func (c *AuthClient) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if _, err := c.http.Get(ctx, "/api/v1/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *AuthClient) Logout() {
	c.http.SetToken("")
}

func (c *AuthClient) use(pair *auth.TokenPair) {
	if pair != nil {
		c.http.SetToken(pair.AccessToken)
	}
}
