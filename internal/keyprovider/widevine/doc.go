// Package widevine fetches content keys from a Widevine license server.
//
// Requests carry the content ID, policy, group ID, and one track entry per
// stream label, and are signed with the configured AES or RSA credential.
// The response schema is server-specific and treated as opaque beyond
// extracting label to key pair mappings; failures propagate as key provider
// errors and are never substituted with zero keys.
package widevine
