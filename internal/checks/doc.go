// Package checks contains the built-in check implementations.
//
// Cheap structural checks (newline, license, data) run without any
// external service. Review and LogInvestigator delegate the expensive
// judgment to the reasoning service behind agent.Client; their failures
// surface as warning outcomes in the aggregate, never as crashes.
//
// Every check derives its applicability from a check.Spec built from
// configuration, so enabling, file types, and path globs are uniform
// across implementations.
package checks
