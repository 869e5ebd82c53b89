/*
Package security provides the AES-256-GCM primitives behind hutch's
secret store.

A SecretsManager encrypts and decrypts opaque byte values with a key
derived from the deployment unit's identity. Ciphertext carries its
nonce prepended, so each encrypted value is self-contained and safe to
persist in the unit state database.
*/
package security
