// Package drm defines the shared data model for the encryption engine.
//
// It holds the provider parameter unions (Widevine, PlayReady, raw key),
// signer credentials, key pairs, crypto periods, protection scheme
// identifiers, and the error markers every component wraps its failures
// with. Parameters are constructed once per packaging job and are read-only
// afterwards; Validate catches configuration problems at setup so they never
// surface at per-sample time.
//
// Treat this package as the single source of truth for provider and scheme
// semantics; components higher in the stack (labeling, rotation, PSSH,
// sample transforms) consume these types but never extend them.
package drm
