// Package internal holds code private to kindauth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations)
//   - flows: orchestration for every Engine operation, over narrow store interfaces
//   - lockout: the failure counter policy shared by the login, verify and resend lockouts
//   - otp: code generation and hashing
//   - logging: the slog setup used by kindauthd
package internal
