// Package proxy provides the egress descriptors the retry policy rotates
// through when a portal starts answering with blank pages.
//
// Two pools are available:
//   - StaticPool hands out the configured proxy servers round-robin. For
//     sticky-session providers it appends a fresh "-session-<token>" suffix
//     to the username on every call, which makes the provider assign a new
//     exit address without any API call.
//   - TorPool runs an embedded Tor daemon through tornago and hands out its
//     SOCKS5 address. Every call after the first restarts the daemon so the
//     browser starts on fresh circuits.
//
// Checker verifies a descriptor before a browser is launched through it:
// a SOCKS5 handshake for socks5 descriptors and a public IP lookup through
// the descriptor for every scheme.
//
// Design decision: Chrome cannot authenticate against SOCKS5 proxies, so
// authenticated providers must be configured with an http scheme. The
// SOCKS5 probe still offers username/password authentication so that the
// health check reports a misconfiguration precisely instead of a generic
// launch failure.
package proxy
