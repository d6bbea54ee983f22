// Package admission builds the request admission policies of webhost-server.
//
// Three policies sit in front of the router:
//
//   - CORS: rs/cors with the named policy "allow-specific-origins";
//     origins without a scheme are normalized to https://
//   - Host filtering: rejects requests whose Host header is not listed
//     (exact names, "*" or "*.domain" wildcards) with 400
//   - Rate limiting: a fixed-window limiter per partition key with a
//     bounded oldest-first queue; overflow is rejected with 429
//
// Build turns ServerSettings into Policies. Disabled policies are nil.
//
// Partition keys are the authenticated identity when one is present in the
// request context (see WithIdentity), otherwise the Host header or the
// remote address depending on settings. Partitions live for the lifetime
// of the limiter; there is no eviction.
package admission
