// Package middleware exposes HTTP adapters over kindauth.Engine.
//
// # Guards
//
//   - [Guard] authenticates the bearer token and, when kinds are given,
//     restricts the route to those account kinds.
//   - [RequireKind] is Guard with at least one kind.
//   - [ClientIP] attaches the peer address so audit events carry it.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// tokens or touch a store; every decision comes from Engine.Authenticate.
package middleware
