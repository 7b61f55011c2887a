// Package agent holds pieces shared by the upstream chat relays.
package agent

// FallbackText is the canned reply returned to chat users when an
// upstream agent fails or answers with nothing usable. Chat endpoints
// prefer a polite answer over a 5xx; the failure itself still lands in
// the audit trail and logs.
const FallbackText = "I'm sorry, I couldn't process your request properly."
