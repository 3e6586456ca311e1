// Package playready fetches content keys for PlayReady protection.
//
// Two mutually exclusive modes exist. Direct mode returns the statically
// configured key pair for every stream label without touching the network.
// Server mode performs a TLS client-certificate-authenticated request keyed
// by the program identifier, with the same label to key pair response shape
// as the other providers.
package playready
