package newsloop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	pathGetPreferences     = "/v1/Get_Preferances"
	pathPublishPreferences = "/v1/publish-preferances"
	pathLookupHandle       = "/v1/getTwUsernames"
)

// PreferencesService manages the source accounts that feed generation.
type PreferencesService struct {
	client *Client
}

// Get returns the usernames currently saved for the user.
func (p *PreferencesService) Get(ctx context.Context) ([]string, error) {
	body, err := p.client.call(ctx, http.MethodGet, pathGetPreferences, nil)
	if err != nil {
		return nil, err
	}

	var prefs preferencesBody
	if err := decode(body, &prefs); err != nil {
		return nil, err
	}
	return prefs.Usernames, nil
}

// Publish replaces the saved usernames.
func (p *PreferencesService) Publish(ctx context.Context, usernames []string) error {
	if usernames == nil {
		usernames = []string{}
	}
	req := preferencesBody{Usernames: usernames}
	if err := check(ErrInvalidRequest, req); err != nil {
		return err
	}

	_, err := p.client.call(ctx, http.MethodPost, pathPublishPreferences, req)
	return err
}

// Lookup checks that handle names a known source account. Any non-200
// status means the handle was not accepted.
func (p *PreferencesService) Lookup(ctx context.Context, handle string) (*Handle, error) {
	req := lookupRequest{Handle: handle}
	if err := check(ErrInvalidRequest, req); err != nil {
		return nil, err
	}

	body, err := p.client.call(ctx, http.MethodPost, pathLookupHandle, req)
	if err != nil {
		return nil, err
	}

	// id has been seen both as a number and as a string
	var res struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	h := &Handle{Name: handle}
	if res.ID != nil {
		h.ID = fmt.Sprint(res.ID)
	}
	return h, nil
}
