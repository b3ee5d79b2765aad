package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Operation succeeded
	SymbolFail     = "✗" // Operation failed
	SymbolPending  = "○" // Not connected, or a failed attempt
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Connected
	SymbolSkipped  = "⊘" // Skipped
)
