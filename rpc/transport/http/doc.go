// Package http implements the transport interfaces over plain HTTP.
//
// A request is a POST of the encoded message to
//
//	http://<endpoint>/<regionId>
//
// and the response body is the encoded reply. Status codes other than 200
// are transport errors.
//
// Key Components:
//
//   - httpClientTransport: implements IRPCClientTransport on a net/http
//     client. Each request carries its own context deadline. SendAsync runs
//     the request on a goroutine and cancels it when the caller cancels.
//
//   - httpServerTransport: implements IRPCServerTransport. Request bodies
//     are limited to MaxMessageSize. With log level debug every request is
//     logged with its status and duration.
//
// The http transport never becomes unhealthy on request failures because
// net/http reconnects on its own; it only turns unhealthy after Close.
package http
