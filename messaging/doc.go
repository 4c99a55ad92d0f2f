// Package messaging delivers OTP codes over email and SMS.
//
// Delivery is best effort. kindauth sends only after the challenge is stored
// and reports failures as warnings rather than undoing the issue.
package messaging
