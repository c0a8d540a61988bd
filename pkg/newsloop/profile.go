package newsloop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const pathGetUser = "/v1/getuser"

// ProfileService reads the signed-in user's profile.
type ProfileService struct {
	client *Client
}

// GetUser returns the profile of the session's user.
func (p *ProfileService) GetUser(ctx context.Context) (*User, error) {
	body, err := p.client.call(ctx, http.MethodGet, pathGetUser, nil)
	if err != nil {
		return nil, err
	}

	var env userEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(env.User, &user); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(env.User, &user.Extra); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInvalidResponse, err)
	}
	return &user, nil
}
