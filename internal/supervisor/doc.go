// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
Package supervisor runs Basketwise's long-lived services under suture v4.

The tree has three layers so a failure in one does not restart the others:

	RootSupervisor ("basketwise")
	├── DataSupervisor ("data-layer")
	│   └── RuleGenerationService
	├── MessagingSupervisor ("messaging-layer")
	│   └── EventBusService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog on the slog adapter of the zerolog logger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewRuleGenerationService(engine, db, ledger, genCfg, logger))
	tree.AddMessagingService(services.NewEventBusService(bus))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))

	errCh := tree.ServeBackground(ctx)

After the context is canceled, UnstoppedServiceReport lists services that did
not stop within ShutdownTimeout.
*/
package supervisor
