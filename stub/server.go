// Package stub is the mock-mode development backend: the fixed property
// dataset behind the REST and GraphQL endpoints, chat rooms, and a minimal
// OIDC provider. It exists so the client packages run and test end-to-end
// without the real services.
package stub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"property-shell/middleware"
	"property-shell/models"
	"property-shell/store"
)

// defaultDelay imitates backend latency before the fixed dataset is served.
const defaultDelay = 500 * time.Millisecond

// Server holds the in-memory dataset. Delay applies to the read endpoints;
// tests set it to zero.
type Server struct {
	mu         sync.Mutex
	properties []models.Property
	nextID     int

	Delay time.Duration
}

func NewServer() *Server {
	properties := seedProperties()
	return &Server{
		properties: properties,
		nextID:     len(properties) + 1,
		Delay:      defaultDelay,
	}
}

func seedProperties() []models.Property {
	return []models.Property{
		{ID: 1, Title: "Beachfront Villa", Type: "Villa", Location: "Malibu, California", Details: "Ocean views from every room", Host: "Sophie", Price: 540, Rating: 4.9, Image: "https://images.example.com/malibu-villa.jpg", Guests: 8},
		{ID: 2, Title: "Mountain Cabin", Type: "House", Location: "Aspen, Colorado", Details: "Ski-in access and a stone fireplace", Host: "Daniel", Price: 320, Rating: 4.7, Image: "https://images.example.com/aspen-cabin.jpg", Guests: 6},
		{ID: 3, Title: "Downtown Loft", Type: "Apartment", Location: "New York, New York", Details: "Industrial loft near SoHo", Host: "Maria", Price: 280, Rating: 4.5, Image: "https://images.example.com/nyc-loft.jpg", Guests: 2},
		{ID: 4, Title: "Canal House", Type: "House", Location: "Amsterdam, Netherlands", Details: "17th-century house on the Prinsengracht", Host: "Jeroen", Price: 310, Rating: 4.8, Image: "https://images.example.com/amsterdam-canal.jpg", Guests: 4},
		{ID: 5, Title: "Desert Dome", Type: "Studio", Location: "Joshua Tree, California", Details: "Stargazing dome with outdoor tub", Host: "Ana", Price: 190, Rating: 4.7, Image: "https://images.example.com/joshua-dome.jpg", Guests: 2},
		{ID: 6, Title: "Harbor Studio", Type: "Studio", Location: "Sydney, Australia", Details: "Compact studio above the quay", Host: "Tom", Price: 210, Rating: 4.2, Image: "https://images.example.com/sydney-studio.jpg", Guests: 2},
	}
}

func (s *Server) snapshot() []models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Property(nil), s.properties...)
}

// ListProperties serves the fixed dataset after the fixed delay.
func (s *Server) ListProperties() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(s.Delay)
		writeJSON(w, http.StatusOK, s.snapshot())
	}
}

// SearchByLocation filters by location substring and sorts by rating
// descending, the server-side twin of the client projection.
func (s *Server) SearchByLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(s.Delay)
		term := mux.Vars(r)["term"]
		results := store.Project(s.snapshot(), term)
		log.Printf("Location search %q matched %d properties", term, len(results))
		writeJSON(w, http.StatusOK, results)
	}
}

// Profile echoes the authenticated subject, mirroring the profile page's
// data need. Reached only through the auth middleware.
func (s *Server) Profile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(middleware.UserIDKey).(string)
		if !ok {
			http.Error(w, "User ID missing in context", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"userID": userID})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
