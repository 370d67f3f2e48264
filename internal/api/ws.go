package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already allows any origin; the bridge follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWebSocket bridges one client to a serial connection. Device traffic
// flows to the client as binary frames; binary and text frames from the
// client are written to the device. When either direction ends, the other is
// torn down and the socket closed.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade websocket for %s: %v", name, err)
		return
	}
	defer conn.Close()

	log.Printf("websocket connection established for %s", name)

	sess, ok := s.registry.Get(name)
	if !ok {
		msg := fmt.Sprintf("Error: Connection not found: %s", name)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.Printf("failed to write websocket error frame: %v", err)
		}
		return
	}

	sub := sess.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Outbound: broadcast subscription to client. Closing the socket on
	// exit unblocks the inbound read below.
	outboundDone := make(chan struct{})
	go func() {
		defer close(outboundDone)
		defer conn.Close()
		for {
			ev, err := sub.Recv(ctx)
			if err != nil {
				return
			}
			if ev.Lagged > 0 {
				log.Printf("websocket client for %s fell behind, dropped %d blocks", name, ev.Lagged)
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, ev.Data); err != nil {
				return
			}
		}
	}()

	// Inbound: client frames to the device.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if err := sess.Send(ctx, data); err != nil {
			log.Printf("failed to send data to serial port %s: %v", name, err)
			break
		}
	}

	cancel()
	conn.Close()
	<-outboundDone

	log.Printf("websocket connection closed for %s", name)
}
