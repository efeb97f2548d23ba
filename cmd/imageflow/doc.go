/*
Package main provides the ImageFlow server executable.

# Overview

cmd/imageflow is the entry point of the ImageFlow service. It exposes the
HTTP API for image generation, provider configuration management, history
and uploads, plus health checks and a version probe. The program loads its
configuration from defaults, an optional YAML file and IMAGEFLOW_*
environment variables, logs with zap, and exports Prometheus metrics on a
separate port.

# Core types

  - Server     — wires stores, dispatcher and both HTTP listeners together
  - Middleware — HTTP middleware signature func(http.Handler) http.Handler

# Capabilities

  - Subcommands: serve, version, health, help
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, OTelTracing, CORS, RateLimiter (per client IP)
  - History backend selection: relational store or Redis, per configuration
  - Metrics server: /metrics (Prometheus) on its own port
  - Graceful shutdown: signal → HTTP → metrics → stores → telemetry
  - Build injection: Version, BuildTime, GitCommit set via ldflags
*/
package main
