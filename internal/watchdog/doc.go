// Package watchdog feeds the gateway's hardware watchdog.
//
// The session feeds it at every blocking boundary: each retry attempt, each
// retry sleep, each transport yield and each registration round trip. A
// watchdog that is not fed resets the board, so a Feeder error is logged by
// callers but never aborts a workflow step.
//
// Hosts without a watchdog device use Nop.
package watchdog
