/*
Package observability turns bridge lifecycle events into Prometheus metrics
and structured log lines.

Both are plain domain.LifecycleHooks, so they compose with any other hooks:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
	bridge := shutter.New(store, launcher, shutter.WithLifecycleHooks(hooks))
*/
package observability
