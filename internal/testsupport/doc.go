// Package testsupport provides scripted fakes shared across package
// tests, most notably a deterministic key provider.
package testsupport
