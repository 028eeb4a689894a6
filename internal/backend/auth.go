package backend

import (
	"context"
	"net/http"

	"github.com/pitabwire/erpconsole/model"
)

// Credentials are what the user types on the sign-in view.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Auth wraps the backend's authentication endpoints.
type Auth struct {
	client *Client
}

// NewAuth returns the authentication endpoints of c.
func NewAuth(c *Client) *Auth {
	return &Auth{client: c}
}

// Login signs in and returns the identity together with the cookies the
// backend set for the new session. When the login answer does not describe
// the user, the identity is read from the me endpoint with those cookies,
// or with the client's cookie jar when it has one.
func (a *Auth) Login(ctx context.Context, creds Credentials) (model.Identity, []*http.Cookie, error) {
	if creds.Username == "" || creds.Password == "" {
		return model.Identity{}, nil, model.NewValidationError("", []model.FieldError{
			{Field: "username", Code: "required", Message: "Username and password are required"},
		})
	}

	res, err := a.client.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     a.client.cfg.LoginPath,
		Body:     creds,
		Resource: "auth",
	})
	if err != nil {
		return model.Identity{}, nil, err
	}

	env, err := Decode[model.Identity](res)
	if err != nil {
		return model.Identity{}, nil, err
	}
	if env.Data.Username != "" {
		return env.Data, res.Cookies, nil
	}

	meCtx := ctx
	if a.client.jar == nil {
		meCtx = WithCredentials(ctx, res.Cookies)
	}
	id, err := a.Me(meCtx)
	if err != nil {
		return model.Identity{}, nil, err
	}
	return id, res.Cookies, nil
}

// Me returns the identity of the session presented in ctx.
func (a *Auth) Me(ctx context.Context) (model.Identity, error) {
	res, err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: a.client.cfg.MePath, Resource: "auth"})
	if err != nil {
		return model.Identity{}, err
	}
	env, err := Decode[model.Identity](res)
	if err != nil {
		return model.Identity{}, err
	}
	if err := env.Data.Validate(); err != nil {
		return model.Identity{}, model.NewApplicationError(res.Status, "The backend returned an incomplete user profile")
	}
	return env.Data, nil
}

// Logout ends the backend session. A session the backend already forgot
// counts as logged out.
func (a *Auth) Logout(ctx context.Context) error {
	if a.client.cfg.LogoutPath == "" {
		return nil
	}
	_, err := a.client.Do(ctx, Request{Method: http.MethodPost, Path: a.client.cfg.LogoutPath, Resource: "auth"})
	if err != nil && !model.IsUnauthorized(err) {
		return err
	}
	return nil
}
