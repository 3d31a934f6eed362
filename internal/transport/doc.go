// Package transport talks to a PoolDose controller over its HTTP/JSON API.
//
// Client covers the endpoints a controller exposes:
//
//	GET  /js_libs/params.js                    software and API version
//	GET  /api/v1/debug/config                  gateway and device identity
//	POST /api/v1/network/wifi/getStation       WiFi station details
//	POST /api/v1/network/wifi/getAccessPoint   access point details
//	POST /api/v1/network/info/getInfo          owner and group
//	POST /api/v1/infoRelease                   release notes for a version
//	POST /api/v1/DWI/getInstantValues          raw instant values
//	POST /api/v1/DWI/setInstantValues          value writes
//	POST /api/v1/system/reboot                 reboot
//
// Every request carries its own timeout. The client remembers the last
// successful instant-values response and returns it alongside ErrLastData
// when a later fetch fails.
//
// Mock serves the same surface from a captured getInstantValues dump and
// records write payloads instead of sending them.
//
// Status classifies errors into the controller API's request outcomes.
package transport
