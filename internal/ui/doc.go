// Package ui renders vmhop's terminal output: spinners, the connection
// attempt display, profile tables, status lines, and interactive prompts.
//
// Styling uses Lip Gloss with ANSI colors so output follows the terminal
// theme. SetColorMode applies the output.color setting:
//
//	auto    color when stdout is a terminal and NO_COLOR is unset
//	always  color even when piped
//	never   plain text
//
// Status symbols:
//
//	●  connected, or a successful attempt
//	○  disconnected, or a failed attempt
//	✗  final failure
package ui
