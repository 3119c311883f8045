package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"noisedeck/log"
)

const pingInterval = 30 * time.Second

// handleEvents pushes playback status snapshots over a websocket: the
// current state on connect, then one message per transition.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := s.svc.Subscribe()
	defer s.svc.Unsubscribe(sub)

	if err := conn.WriteJSON(s.svc.Status()); err != nil {
		return
	}

	// Reader loop exists only to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case info := <-sub:
			if err := conn.WriteJSON(info); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
