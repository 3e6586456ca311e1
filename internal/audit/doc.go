// Package audit persists non-secret key lifecycle events in SQLite.
//
// Records carry the job ID, stream label, crypto period index, key ID
// (hex), and provider kind so operators can reconstruct which key
// protected which period without re-running a job. Key material and
// signing credentials are never written; the engine keeps secrets in
// memory only.
package audit
