package middleware

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ErrNoIdentity is returned by CurrentActor when JWTAuth did not run or
// the subject is not a numeric user id.
var ErrNoIdentity = errors.New("no authenticated user")

// CurrentActor returns the caller stored by JWTAuth.
func CurrentActor(c echo.Context) (model.Actor, error) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return model.Actor{}, ErrNoIdentity
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return model.Actor{}, ErrNoIdentity
	}
	role, _ := c.Get("role").(string)
	return model.Actor{UserID: id, Role: role}, nil
}

// currentUserID is the rate-limit identity: the token subject or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
