package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket connections and runs their
// lifecycle. Every socket gets an opaque uuid connection id; the client's
// claimed identity travels inside each envelope instead.
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   *websocket.Upgrader
}

func NewServer(hub *Hub, dispatcher *Dispatcher) *Server {
	return &Server{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	connID := uuid.NewString()
	conn := NewConnection(s.dispatcher, s.hub, socket, connID)

	if err := conn.Handle(r.Context()); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			log.Printf("connection %s closed: %v", connID, err)
		}
	}
}
