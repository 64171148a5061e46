// Package api defines the shared, dependency-free contracts that every
// layer of the reactor core (poller, wheel, queue, loop, socket,
// tlsadapter) and its protocol collaborators (websocket, http1, http2)
// are built against.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api
