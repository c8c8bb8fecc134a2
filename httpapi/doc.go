// Package httpapi exposes the credential lifecycle over JSON/HTTP.
//
// Routes:
//
//	POST /auth/register  {name, email, password}  201 RegisterResult
//	POST /auth/verify    {email, code}            200 AuthResult, sets session cookie
//	POST /auth/login     {email, password}        200 AuthResult, sets session cookie
//	POST /auth/logout                             204, clears session cookie
//	POST /auth/resend    {email}                  202
//	GET  /auth/me                                 200 claims of the session token
//	GET  /healthz                                 200 or 503 from the readiness check
//
// Engine errors are written as {"error": message, "code": kind} with the status
// chosen by [StatusFor].
package httpapi
