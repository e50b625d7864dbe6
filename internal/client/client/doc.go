// Package client talks to the GuardShare LinkAccess gRPC service.
//
// GRPCClient manages the connection, attaches the optional access token to
// every call and maps gRPC status codes to the sentinel errors in this
// package, so callers can match them with errors.Is.
package client
