// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and reports.
// Keep raw codes for JSON fields, database columns, and equality comparisons.
package display

import "strings"

func lookup(m map[string]string, code string) string {
	if name, ok := m[code]; ok {
		return name
	}
	return code
}

func withCode(m map[string]string, code string) string {
	if name, ok := m[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Failure classes ---

var classes = map[string]string{
	"STABLE_AUTHORITY":     "Stable Authority",
	"BOUNDED_DEGRADATION":  "Bounded Degradation",
	"STRUCTURAL_THRASHING": "Structural Thrashing",
	"ASYMPTOTIC_DOS":       "Asymptotic DoS",
	"TERMINAL_COLLAPSE":    "Terminal Collapse",
}

// Class returns the human-readable failure class. Unknown codes are
// returned as-is; an empty code (invalid run) renders as "-".
func Class(code string) string {
	if code == "" {
		return "-"
	}
	return lookup(classes, code)
}

// ClassWithCode returns "Asymptotic DoS (ASYMPTOTIC_DOS)" format.
func ClassWithCode(code string) string { return withCode(classes, code) }

// --- Interference models ---

var models = map[string]string{
	"none":                "Disabled",
	"stateless_bernoulli": "Stateless Bernoulli",
	"key_targeted":        "Single-Key Targeted",
	"burst_periodic":      "Periodic Burst",
	"bounded_fsm":         "Bounded FSM",
}

// Model returns the human-readable interference model name.
func Model(code string) string {
	if code == "" {
		return models["none"]
	}
	return lookup(models, code)
}

// --- Phases ---

var phases = map[string]string{
	"DISABLED":  "Disabled",
	"IDLE":      "Idle (no holder)",
	"STATELESS": "Stateless",
	"ACTIVE":    "Burst Active",
	"QUIET":     "Burst Quiet",
}

// Phase returns the human-readable phase. FSM state labels ("S0", "S1", ...)
// render as "State 0", "State 1", ...
func Phase(code string) string {
	if name, ok := phases[code]; ok {
		return name
	}
	if n, ok := strings.CutPrefix(code, "S"); ok && n != "" && strings.Trim(n, "0123456789") == "" {
		return "State " + n
	}
	return code
}

// PhaseList joins several phase codes for display.
func PhaseList(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = Phase(c)
	}
	return strings.Join(names, ", ")
}

// --- Lease transitions ---

var transitions = map[string]string{
	"none":       "-",
	"renew":      "Renewed",
	"succession": "Succession",
	"lapse":      "Lapse",
	"recover":    "Recovered",
	"regrant":    "Fresh Term",
}

// Transition returns the human-readable lease transition.
func Transition(code string) string { return lookup(transitions, code) }

// --- Run status ---

var statuses = map[string]string{
	"VALID":       "Valid",
	"INVALID_RUN": "Invalid",
}

// Status returns the human-readable run status.
func Status(code string) string { return lookup(statuses, code) }
