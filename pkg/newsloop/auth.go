package newsloop

import (
	"context"
	"net/http"
)

const pathSignUpOrLogin = "/v1/signuporlogin"

// AuthService exchanges an external identity credential for a session.
type AuthService struct {
	client *Client
}

// SignUpOrLogin sends the Google identity credential to the backend.
//
// On success the server sets its session cookie, which the client keeps
// and sends on every later call. The result tells the caller where a user
// belongs next: existing users go to the dashboard, new users set up
// their preferences first.
//
// Example:
//
//	res, err := client.Auth().SignUpOrLogin(ctx, credential)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.API.SessionCookie = client.SessionCookie()
func (a *AuthService) SignUpOrLogin(ctx context.Context, token string) (*LoginResult, error) {
	req := loginRequest{Token: token}
	if err := check(ErrInvalidRequest, req); err != nil {
		return nil, err
	}

	body, err := a.client.call(ctx, http.MethodPost, pathSignUpOrLogin, req)
	if err != nil {
		return nil, err
	}

	var res LoginResult
	if err := decode(body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
