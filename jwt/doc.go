// Package jwt issues and verifies the stateless session tokens handed out after a
// successful verification or login. Tokens carry only the account identifier and
// standard registered claims.
package jwt
