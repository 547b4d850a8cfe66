// Package ws streams bus events to WebSocket observers.
//
// The Hub subscribes to the broadcast bus and relays every event to the
// clients subscribed to its channel. Clients start subscribed to all
// channels and may send:
//
//	{"type":"ping"}
//	{"type":"subscribe","channel":"system-kernel-info"}
//	{"type":"unsubscribe","channel":"system-kernel-info"}
//	{"type":"refresh","channel":"system-locale-info"}
//
// A refresh re-probes the host; the fresh snapshot reaches every
// subscribed client as an ordinary event. Concurrent refreshes of one
// channel share a single probe, and a client's repeat request is dropped
// while its previous one is still running.
//
// CORS does not apply to WebSocket upgrades, so the hub checks the Origin
// header itself; see WithOriginCheck.
package ws
