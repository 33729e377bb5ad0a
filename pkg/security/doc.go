// Package security composes rate limiting, authentication, authorization
// and input sanitization into a single middleware pipeline applied per
// route. Gate checks fail closed: if the pipeline cannot decide whether a
// request is allowed, the request is denied.
package security
