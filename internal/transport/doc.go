// Package transport carries playback commands to a remote backend.
//
// Every remote call goes through an [Executor]. Cross-cutting behaviour is layered on with
// [Middleware] composed by [Chain]:
//   - [WithRetry] : 429 honouring Retry-After, 5xx and network backoff, one credential refresh on 401
//   - [WithRateLimit] : client-side request ceiling backed by golang.org/x/time/rate
//   - [WithTimeout] : per-attempt deadline
//   - [WithLogging] : debug tracing of each command
//
// The [Serializer] gives each user an exclusive section so no two playback commands for the
// same user are ever in flight at once.
package transport
