// Package password hashes and verifies account passwords.
//
// Every password is reduced to the hex encoding of its SHA-256 digest before
// it reaches bcrypt, so the 72-byte bcrypt input limit never truncates a long
// password. Stored digests are plain bcrypt strings:
//
//	$2a$<cost>$<22 char salt><31 char hash>
//
// Hashing is CPU bound. A Hasher admits a bounded number of concurrent hash
// or verify calls and makes the rest wait on their context.
package password
