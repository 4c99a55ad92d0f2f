// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunVerifyOTP, RunRefresh, etc.) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. The Engine builds the dependency structs once and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, OTP ledger, token
// blacklist, JWT manager, message gateway, audit dispatcher and metrics. They do
// NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import kindauth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
