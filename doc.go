// Package mcpwire implements a bidirectional JSON-RPC 2.0 engine for the
// Model Context Protocol (MCP). A single Router serves both directions of a
// connection: it dispatches inbound requests and notifications through a
// handler registry, and correlates outbound requests with the responses the
// peer sends back, so either side can call the other at any time.
//
// Dispatch runs under admission control and a resilience stack of request
// deduplication, per-endpoint circuit breaking, and retry with exponential
// backoff. Transports are pluggable through the Session interface; stdio and
// HTTP+SSE implementations are included.
package mcpwire
