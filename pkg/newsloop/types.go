package newsloop

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// deleteRequest is the body of /v1/delete_audiofile.
type deleteRequest struct {
	ObjectName string `json:"object_name" validate:"required"`
}

// loginRequest is the body of /v1/signuporlogin.
type loginRequest struct {
	Token string `json:"Token" validate:"required"`
}

// LoginResult is the routing decision returned by /v1/signuporlogin.
type LoginResult struct {
	ExistingUser int `json:"existing_user" validate:"oneof=0 1"`
}

// IsExisting reports whether the account already had preferences set up.
func (r *LoginResult) IsExisting() bool {
	return r.ExistingUser == 1
}

// User is the profile returned by /v1/getuser. The backend owns the shape;
// the fields the client shows are decoded and the rest kept in Extra.
type User struct {
	Name    string         `json:"name,omitempty"`
	Email   string         `json:"email,omitempty"`
	Picture string         `json:"picture,omitempty"`
	Extra   map[string]any `json:"-"`
}

type userEnvelope struct {
	User json.RawMessage `json:"user" validate:"required"`
}

// preferencesBody is both the response of /v1/Get_Preferances and the
// request of /v1/publish-preferances.
type preferencesBody struct {
	Usernames []string `json:"usernames" validate:"required,dive,required"`
}

type lookupRequest struct {
	Handle string `json:"tw_user_name" validate:"required"`
}

// Handle is a source account accepted by /v1/getTwUsernames.
type Handle struct {
	ID   string `json:"id"`
	Name string `json:"-"`
}

// validate is shared by every service; validator caches struct metadata.
var validate = validator.New()

// check runs struct validation and wraps failures with sentinel.
func check(sentinel error, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return nil
}

// decode unmarshals body into v and validates the result.
func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return check(ErrInvalidResponse, v)
}
