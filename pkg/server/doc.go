// Package server runs the remote-control endpoint of a streaming application.
//
// A Server listens on the transports enabled in its Config, gives every
// accepted connection its own securechannel.Session and, once the handshake
// completes, feeds decrypted requests to an rpc.Dispatcher bound to the
// application's software.Software.
//
// # Running a Server
//
//	dummy, _ := software.NewDummy(software.DummyConfig{
//	    Config: software.Config{Password: "secret", TCPPort: 9001, WebSocketPort: 9002},
//	})
//	srv, err := server.New(server.Config{
//	    Software:  dummy,
//	    Advertise: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
//
// # Connection lifecycle
//
// Connections live in a registry keyed by transport.ConnID. A connection never
// removes itself: every failure is returned to the server, which removes the
// entry, wipes the session and closes the transport connection. Handshake
// failures are silent towards the peer, which just sees the connection close.
//
// State changes reported by the software are broadcast as
// outputs/stateChanged notifications to every authenticated connection.
// A new configuration moves listeners whose port changed and updates the mDNS
// advertisement; new handshakes always use the current password.
package server
