// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
Package services provides suture.Service wrappers for Basketwise components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve method, returns ctx.Err() on shutdown, and implements fmt.Stringer so
suture can name it in log events.

HTTPServerService wraps *http.Server: ListenAndServe runs in a goroutine and
Shutdown drains connections within the configured timeout.

EventBusService runs the events.Bus router that delivers rules.replaced
messages to the rule cache.

RuleGenerationService regenerates every household's association rules on a
schedule:

 1. Wait the startup delay, or the rest of the interval when the run ledger
    shows a successful run younger than the interval.
 2. Run GenerateAllRules bounded by the run timeout.
 3. Prune rules older than the freshness window and record the run.
 4. Wait the interval, or the error retry delay after a failed run.

RunNow performs steps 2 and 3 on demand for the admin API.
*/
package services
