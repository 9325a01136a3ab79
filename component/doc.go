// Package component manages the lifecycle of long-running resilkit parts
// such as the discovery poller, the telemetry exporters and the demo HTTP
// server.
//
// Components are started in registration order and stopped in reverse.
package component
