// Package auth guards the write endpoints of the PoolDose API.
//
// Reads are public. Changing values needs an operator token and rebooting
// the controller an admin token. Accounts come from configuration:
//
//	security:
//	  jwt:
//	    secret: "..."            # at least 32 characters
//	    access_token_ttl: 15     # minutes
//	  admin:
//	    username: "admin"
//	    password_hash: "$argon2id$v=19$m=65536,t=3,p=1$..."
//
// Passwords are stored as Argon2id PHC strings (HashPassword). Access tokens
// are HS256 JWTs carrying the role; there are no refresh tokens, clients log
// in again when a token expires.
package auth
