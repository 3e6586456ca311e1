// Package crypt is the encryption/decryption facade over labeling, key
// rotation, scheme policy, and PSSH construction.
//
// The Encryptor resolves, per sample, the active key pair and transform
// parameters, applies the CTR or CBC (pattern) transform, and surfaces
// fresh PSSH bytes once per crypto period transition. Samples inside the
// clear lead window bypass the engine entirely, including the scheduler
// and the key provider. The Decryptor is a one-hop key-id lookup with a
// per-job cache; rotation bookkeeping never applies on the decryption
// path because key ids arrive in the protection header.
package crypt
