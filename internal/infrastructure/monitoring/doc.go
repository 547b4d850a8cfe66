/*
Package monitoring provides Prometheus metrics for the hostsync service.

# Overview

Metrics cover the HTTP surface, privileged command executions (by outcome
kind), host probe failures, published status events and WebSocket observers.
The collector is registered against an injectable prometheus.Registerer so
tests can use a private registry.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

All Record methods are safe on a nil *Metrics, so components can run
without instrumentation.
*/
package monitoring
