// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity represents the authenticated user and the tenant of the request.
// Handlers read it instead of poking at gin context keys.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() int64
	// CompanyID returns the tenant (empresa) of the request, 0 when unknown.
	CompanyID() int64
	// Roles returns the user's assigned roles.
	Roles() []string
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        int64
	companyID     int64
	roles         []string
	authenticated bool
}

func (i *identity) UserID() int64         { return i.userID }
func (i *identity) CompanyID() int64      { return i.companyID }
func (i *identity) Roles() []string       { return i.roles }
func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	id := &identity{}
	if companyID, ok := c.Get(ContextCompanyIDKey); ok {
		id.companyID, _ = companyID.(int64)
	}

	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return id
	}
	uid, ok := userID.(int64)
	if !ok {
		return id
	}
	id.userID = uid
	id.authenticated = true
	if roles, ok := c.Get(ContextRolesKey); ok {
		id.roles, _ = roles.([]string)
	}
	return id
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		Abort(c, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	return id
}
