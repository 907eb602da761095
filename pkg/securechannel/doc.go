// Package securechannel implements the password-authenticated handshake and the
// encrypted channel that follows it.
//
// # Protocol Flow
//
//	Client (Initiator)                         Server (Session)
//	------------------                         ----------------
//	NewInitiator(password)                     NewSession(password)
//	                                           |  StateUninitialized
//	msg = Start()           -- ClientHello ->  HandleMessage(msg)
//	                                           |  StateAwaitingClientConfirmation
//	                        <- ServerHello --  Result.Reply
//	HandleServerHello(msg)
//	                        -- ClientReady ->  HandleMessage(msg)
//	                                           |  StateAuthenticated
//	                        <--- "hello" ----  Encrypt(hello)
//	Decrypt / Encrypt       <== secretstream ==> Decrypt / Encrypt
//
// ClientHello carries a password hash salt and a secretbox, sealed under the
// password-derived key, holding the server-to-client stream key. ServerHello
// answers with a secretbox holding the client-to-server stream key and a MAC
// key, plus the header of the server's push stream. ClientReady carries the
// header of the client's push stream and a MAC over it.
//
// Every failure is final. HandleMessage returns an error and the owner of the
// Session is expected to Close it and drop the connection without replying.
package securechannel
