// Package api implements the HTTP REST API of the pooldose service.
//
// This package provides:
//   - Read endpoints for the device identity, mapping and decoded values
//   - Value writes validated against the latest snapshot
//   - Value history and the write audit log
//   - JWT authentication with role based permissions on writes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Prometheus scrape endpoint and a JSON system summary
//
// # Routes
//
//	GET  /api/v1/health               service, device and component health
//	GET  /api/v1/device               static identity (keys redacted)
//	GET  /api/v1/types                logical names by kind
//	GET  /api/v1/values[?kind=]       structured snapshot
//	GET  /api/v1/values/{name}        one value with its mapping details
//	PUT  /api/v1/values/{name}        write {"value": ...}   (value:write)
//	GET  /api/v1/history/{name}       readings, newest first
//	GET  /api/v1/writes               write audit, newest first
//	POST /api/v1/auth/login           issue an access token
//	POST /api/v1/system/reboot        restart the controller (system:reboot)
//	GET  /api/v1/system/metrics       runtime and device summary
//
// # Write Errors
//
// Rejected writes answer 422 with the same error code that MQTT
// acknowledgements carry (OUT_OF_RANGE, OFF_STEP, ...). Writes while the
// device is unreachable answer 503, and writes the device did not
// acknowledge answer 502.
//
// # Graceful Degradation
//
// Reads are served from the monitor's cache and keep working while the
// device is offline. Without an authenticator the write endpoints answer
// 503; without a history repository the history endpoints do.
package api
