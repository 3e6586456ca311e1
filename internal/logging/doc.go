// Package logging builds the process-wide slog logger and provides the
// attribute vocabulary shared by the engine components. Log output never
// carries key material; key identity appears as hex key IDs only.
package logging
