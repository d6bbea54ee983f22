// Package tlscert loads the TLS identity served by the HTTPS listener.
//
// Supported containers:
//
//   - .pem: certificate chain plus private key, either in the same file or
//     in a separate key file; encrypted keys (PKCS#8 or legacy
//     Proc-Type blocks) are decrypted with the configured password
//   - .pfx / .p12: PKCS#12 archives
//   - no extension: PEM text or PKCS#12, detected from the content
//
// The Resolver never logs or persists key material. Development builds a
// throwaway self-signed identity for local HTTPS without a certificate.
package tlscert
