// Package label assigns stream labels to streams to be encrypted.
//
// A stream label groups streams that must share one KeyPair: streams with
// the same label always use the same pair, streams with different labels
// may or may not. The Default policy buckets audio by channel count and
// video by resolution and bit depth; Func adapts a caller-supplied
// function whose result is trusted verbatim, including the empty string
// (default-key semantics).
package label
