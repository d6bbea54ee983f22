// Package domain defines the error taxonomy shared by the webhost core.
//
// Every fatal startup condition and every runtime admission rejection is
// a *DomainError with a stable code:
//
//   - WH-CFG-*: settings document read, write, parse and model failures
//   - WH-LSN-*: listener planning and binding failures
//   - WH-TLS-*: certificate resolution failures
//   - WH-ADM-*: request admission rejections (host filter, rate limit)
//
// Callers wrap sentinels with context (WithDetails, WithDiagnostics,
// WithCause) and match them with errors.Is, which compares codes only.
package domain
