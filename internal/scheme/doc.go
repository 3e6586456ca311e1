// Package scheme resolves sample-level transform parameters from the
// configured protection scheme and the stream codec.
//
// Resolve is a pure lookup with no side effects: cenc and cbc1 encrypt
// whole samples, cens and cbcs use pattern (subsample) encryption with the
// standard 1:9 crypt/skip pattern, NAL-structured codecs keep their
// headers clear under subsample modes, and VP9 superframes only use
// subsample framing when explicitly enabled.
package scheme
