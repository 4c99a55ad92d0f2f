// Package password provides the password hashers used by kindauth: argon2id
// for new digests and bcrypt for digests imported from older systems.
package password
