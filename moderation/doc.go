// Trust-and-safety enforcement engine for the streamtide live chat platform.
//
// This package tree (`github.com/streamtide/guardian/moderation`) ingests content events (chat messages, user reports, profile text), computes a risk classification, decides a graduated enforcement action, accumulates time-decaying strike history per (user, scope), escalates borderline cases into a human review queue, and resolves appeals which can reverse prior enforcement. Counters, sets, and flags are maintained in keyed stores so detectors (spam, mass-report, notification throttling) share one windowed-counter primitive and state survives restarts.
//
// See `cmd/guardian` for the daemon built on these packages.
package moderation
