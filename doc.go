// Package websocket is a small server-side implementation of RFC 6455.
//
// An Upgrader (or a Server wrapping one) answers the HTTP upgrade and returns
// a Conn. Frames read off the socket are accumulated until complete, so
// messages split across TCP reads decode the same as whole ones. Handlers
// registered with SetMessageHandler and SetCloseHandler receive notifications
// in wire order; the close handler runs exactly once.
//
//	srv := websocket.NewServer(websocket.Config{Port: 9999})
//	srv.OnConnect(func(c *websocket.Conn) {
//		c.SetMessageHandler(func(c *websocket.Conn, msg websocket.Message) {
//			c.Send(msg.Payload())
//		})
//	})
//	srv.ListenAndServe(ctx)
//
// Subprotocols, extensions and automatic keep-alive pings are not supported.
// Fragmented messages are reassembled; client frames must be masked.
package websocket
