// Package pssh builds Protection System Specific Header payloads for
// embedding into container-level protection boxes.
//
// Output ordering is fixed and load-bearing for consumers: the
// common-system payload, when requested, always precedes the
// provider-specific payload. Caller-supplied raw PSSH bytes in raw-key
// mode are emitted verbatim and exclusively, without re-parsing or
// concatenation.
package pssh
