// Package api is the thin JSON client for the entity backend.
//
// The backend exposes GET /{entity} and PATCH /{entity}/{id}, both answering
// with the envelope {success, data, error, statusCode}. Client maps transport
// failures to ErrNetwork and rejected requests to *ServerError. Reads are
// retried on network and 5xx failures; writes are sent once. Both pass
// through a shared circuit breaker and the observe middleware.
//
// Resource adapts the client to the function types the store and toggle
// packages consume.
package api
