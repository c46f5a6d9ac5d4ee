// Package notify delivers user-facing success and error notifications.
//
// Notifiers are fire-and-forget: they return nothing and must not block the
// caller for long.
package notify
