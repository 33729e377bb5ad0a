// Package api exposes the HTTP surface: the public lead-capture endpoint
// for the marketing site and the admin panel API for lead management and
// audit inspection. Route-level security (rate limits, authentication,
// role checks, input sanitization) is applied by the security pipeline;
// handlers here assume it already ran.
package api
