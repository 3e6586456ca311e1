// Command mediaseal is the CLI for the content protection engine: it
// validates configuration, fetches keys from the configured provider,
// and emits PSSH payloads for packaging pipelines.
package main
