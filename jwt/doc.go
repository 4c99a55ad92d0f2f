// Package jwt issues and verifies the access and refresh tokens handed out by
// kindauth. Every token carries a unique jti used as its revocation key.
package jwt
