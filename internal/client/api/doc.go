// Package api is the client side of the Nodea REST API.
//
// # Overview
//
// Client is the transport contract used by the client services. HTTPClient
// implements it over net/http: it keeps the session tokens in memory,
// injects the bearer token, refreshes an expired access token once and
// replays the request, and maps error responses back to the sentinels in
// internal/common.
//
// Capability values (sid, d) are sent as query parameters, never headers.
//
// # Error Handling
//
//   - 400 -> common.ErrorValidation
//   - 401 -> ErrUnauthorized (common.ErrTokenExpired when refresh is impossible)
//   - 403 -> common.ErrorForbidden
//   - 404 -> common.ErrorNotFound
//   - transport failures and 502/503/504 -> ErrUnavailable
//
// HTTPClient is safe for concurrent use.
package api
