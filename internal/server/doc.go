// Package server provides HTTP routing, middleware, and the two local endpoints the CLI serves.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] uses [http.ServeMux] method patterns; [Middleware] wraps handlers in reverse order
// (last added executes first). [WithLogging] and [WithRecover] are the stock middleware.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the authorization code flow with PKCE. It validates the state parameter,
// exchanges the code together with the verifier, and sends exactly one result through a channel.
// A temporary server on the configured callback address runs for the duration of `auth login`.
//
// # Control Endpoint
//
// The process running `play` owns the playback engine. It serves [ControlHandler] on the control
// address so that `next`, `reshuffle`, `stop` and `status` issued from other shells act on the same
// engine, and therefore inside the same per-user critical section, instead of racing it.
// [ControlClient] is the matching client. Both sides satisfy [Controller].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
