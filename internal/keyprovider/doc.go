// Package keyprovider abstracts key acquisition behind one capability
// shared by the three backends: a Widevine license server (signed
// requests), a PlayReady key server (mutual TLS or a directly configured
// key), and a static raw key map.
//
// Providers only produce keys on demand; deciding when a new crypto period
// needs keys is the rotation scheduler's job. Provider calls may block on
// the network, so callers must not hold locks across them.
package keyprovider
