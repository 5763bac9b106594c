// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
Package api serves the Basketwise HTTP API on the chi router.

# Endpoints

	GET  /api/v1/health/live                   process is up
	GET  /api/v1/health/ready                  database answers a ping
	GET  /api/v1/predictions                   ?user_id=&shopping_list_id=&limit=
	POST /api/v1/predictions/rules/generate    regenerate every household's rules now
	POST /api/v1/predictions/rules/generate/global
	                                           regenerate the cross-household rules
	POST /api/v1/predictions/rules/generate/households/{household_id}
	                                           regenerate one household's rules
	GET  /api/v1/predictions/rules/status      last runs from the run ledger
	GET  /metrics                              Prometheus exposition

Every JSON body uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "request_id": "..."}}

# Middleware

Global: request ID with logging context, RealIP, Recoverer, CORS. API routes
add httprate limiting and Prometheus request metrics labeled by chi route
pattern.
*/
package api
