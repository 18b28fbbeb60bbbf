package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bartgame/multiplayer-server/game/config"
	"github.com/bartgame/multiplayer-server/game/room"
	"github.com/bartgame/multiplayer-server/game/service"
	"github.com/bartgame/multiplayer-server/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.RelayService
	hub     *websocket.Hub
	configs *config.Manager
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(relay service.RelayService, hub *websocket.Hub, configs *config.Manager) *Server {
	s := &Server{
		service: relay,
		hub:     hub,
		configs: configs,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{key}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{key}", s.handleCloseRoom).Methods("DELETE")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Liveness banner
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleRoot serves the plain-text liveness banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Bart Multiplayer WebSocket Server Running")
}

// handleHealth serves the JSON liveness indicator.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStats returns process-wide relay statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleListConfigs lists the available deployment configurations.
func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	infos, err := s.configs.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configs": infos,
		"active":  s.service.Deployment().Name,
	})
}

// handleListRooms returns the room directory.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Directory(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// handleGetRoom returns the snapshot of one room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	snapshot, err := s.service.RoomSnapshot(r.Context(), key)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleCloseRoom closes a room: members receive a terminal server_closing
// notice before the registry releases the room.
func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	key := room.NormalizeKey(mux.Vars(r)["key"])

	if _, err := s.service.RoomSnapshot(r.Context(), key); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Notify and detach members first, then release the room.
	s.hub.AnnounceClosing(key)

	result, err := s.service.CloseRoom(r.Context(), key)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"closed":  result.Key,
		"players": len(result.PlayerIDs),
	})
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}
