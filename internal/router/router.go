// Package router implements the per-conversation content-routing state
// machine: age-gating, lock-in, and refusal, driven purely by the current
// SessionState and the classifier's label for the new message.
package router

import (
	"time"

	"clone-llm/internal/classify"
	"clone-llm/internal/domain"
)

// Router is a stateless state machine; a zero value is ready to use. It
// never mutates the SessionState it is given — callers persist whatever
// NextState the Decide call returns.
type Router struct {
	LockInWindow         int
	AgeVerifyAttemptsCap int
}

// DefaultRouter uses the spec's documented defaults (5-message lock-in,
// 3-attempt age-verification cap). Construct Router directly to override.
var DefaultRouter = Router{LockInWindow: 5, AgeVerifyAttemptsCap: 3}

// Decision is the router's output for one message: the next SessionState
// to persist and the action the orchestrator must take.
type Decision struct {
	NextState domain.SessionState
	Action    domain.RouteAction
}

// Decide maps (current state, classifier label, message index within the
// conversation) to a Decision. messageIndex is the 1-based ordinal of
// the message just appended, used to compute and check the lock-in window.
func (r Router) Decide(state domain.SessionState, label classify.Label, messageIndex int, now time.Time) Decision {
	window := r.LockInWindow
	if window <= 0 {
		window = 5
	}
	attemptsCap := r.AgeVerifyAttemptsCap
	if attemptsCap <= 0 {
		attemptsCap = 3
	}

	next := state
	next.LastUpdated = now

	switch label {
	case classify.MINOR_RISK:
		next.CurrentRoute = domain.RouteHardRefused
		return Decision{NextState: next, Action: domain.ActionRefuseHard}

	case classify.NONCONSENSUAL:
		next.CurrentRoute = domain.RouteRefused
		return Decision{NextState: next, Action: domain.ActionRefuseSoft}

	case classify.EXPLICIT_CONSENSUAL_ADULT, classify.EXPLICIT_FETISH:
		if state.AgeVerificationAttempts >= attemptsCap {
			next.CurrentRoute = domain.RouteRefused
			return Decision{NextState: next, Action: domain.ActionRefuseSoft}
		}
		if !state.AgeVerified {
			next.CurrentRoute = domain.RouteGatePending
			return Decision{NextState: next, Action: domain.ActionRequestAgeVerify}
		}
		route := domain.RouteExplicit
		if label == classify.EXPLICIT_FETISH {
			route = domain.RouteFetish
		}
		next.CurrentRoute = route
		next.RouteLockedUntilMessageIndex = messageIndex + window
		return Decision{NextState: next, Action: domain.ActionProceed}

	case classify.SAFE, classify.SUGGESTIVE:
		if state.CurrentRoute.Locked() && messageIndex <= state.RouteLockedUntilMessageIndex {
			// Lock-in holds: a SAFE/SUGGESTIVE message does not break tone.
			next.CurrentRoute = state.CurrentRoute
			return Decision{NextState: next, Action: domain.ActionProceed}
		}
		if label == classify.SUGGESTIVE {
			next.CurrentRoute = domain.RouteRomance
		} else {
			next.CurrentRoute = domain.RouteNormal
		}
		return Decision{NextState: next, Action: domain.ActionProceed}
	}

	next.CurrentRoute = domain.RouteNormal
	return Decision{NextState: next, Action: domain.ActionProceed}
}

// RecordAgeVerificationFailure increments the attempt counter; once it
// reaches the cap, future explicit inputs downgrade to REFUSED for the
// rest of the conversation's lifetime (enforced in Decide above).
func (r Router) RecordAgeVerificationFailure(state domain.SessionState, now time.Time) domain.SessionState {
	state.AgeVerificationAttempts++
	state.LastUpdated = now
	return state
}

// ConfirmAgeVerification sets AgeVerified. The failure counter is left as
// it is, so a conversation already at the attempts cap stays refused.
func (r Router) ConfirmAgeVerification(state domain.SessionState, now time.Time) domain.SessionState {
	state.AgeVerified = true
	state.LastUpdated = now
	return state
}

// RefusalText returns the canonical, fixed-string assistant message for a
// refusal or age-gate action. These strings are part of the contract:
// scenario tests in the test suite match them literally.
func RefusalText(action domain.RouteAction) string {
	switch action {
	case domain.ActionRefuseHard:
		return "I can't help with that request."
	case domain.ActionRefuseSoft:
		return "I'm not able to continue with that request."
	case domain.ActionRequestAgeVerify:
		return "Are you 18 years of age or older?"
	default:
		return ""
	}
}
