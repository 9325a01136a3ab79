// Package bootstrap runs a resilkit process: it validates the typed config,
// initialises logging, starts registered components in order, runs hooks and
// stops everything in reverse on shutdown.
//
//	app, err := bootstrap.NewApp(&cfg)
//	_ = app.RegisterComponent(registry)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
//	    return a.Health.RegisterCheck("registry", probes.Registry(registry))
//	})
//	err = app.Run(ctx)
package bootstrap
