// Package keel provides an embeddable supervisor for one web service: it
// launches the service, probes its liveness endpoint and owns its shutdown.
//
// The keel binary uses the same machinery as the container entry point; this
// package lets other Go programs run it in-process, typically with their
// own service factory.
//
// # Basic Usage
//
//	cfg := keel.Config{
//	    Command: []string{"uvicorn", "src.main:app", "--port", "8080"},
//	    Dir:     "/app",
//	    Port:    8080,
//	    UID:     999,
//	    GID:     999,
//	}
//
//	k, err := keel.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := k.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	// ... run until shutdown signal ...
//	if err := k.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Health
//
// The service starts in [HealthStarting]. Probe outcomes inside the start
// period are ignored; after it, one success makes the service healthy and
// [Config.Retries] consecutive failures make it unhealthy. Health never
// stops the service.
//
// # Dependency Injection
//
// For tests, inject a stub service and transport:
//
//	k, err := keel.New(cfg,
//	    keel.WithServiceFactory(stubFactory),
//	    keel.WithHTTPClient(mockClient),
//	    keel.WithLogger(customLogger),
//	)
//
// # Lifecycle States
//
// A Keel instance is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping] or [StateCrashed]. Use [Keel.Status] to
// query it.
package keel
