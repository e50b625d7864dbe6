// Package common contains shared constants and sentinel errors used across
// GuardShare components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Link verification credentials can be passed in these HTTP headers as an
// alternative to query parameters.
const (
	LinkPasswordHeaderName = "X-Link-Password"
	LinkUsernameHeaderName = "X-Link-Username"
)

// Role names stored in users.role.
const (
	RoleUser      = "user"
	RoleSuperuser = "superuser"
)
