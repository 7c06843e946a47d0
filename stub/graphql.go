package stub

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"property-shell/models"
)

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// GraphQL serves the three operations the shell uses: addProperty,
// properties, and property(id). Anything else is an unknown-operation error.
func (s *Server) GraphQL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeGraphQLError(w, "invalid request body")
			return
		}

		switch {
		case strings.Contains(req.Query, "addProperty"):
			s.addProperty(w, req)
		case strings.Contains(req.Query, "property("):
			s.propertyByID(w, req)
		case strings.Contains(req.Query, "properties"):
			writeGraphQLData(w, map[string]interface{}{"properties": s.snapshot()})
		default:
			writeGraphQLError(w, "unknown operation")
		}
	}
}

func (s *Server) addProperty(w http.ResponseWriter, req graphqlRequest) {
	raw, err := json.Marshal(req.Variables["input"])
	if err != nil {
		writeGraphQLError(w, "invalid input variable")
		return
	}
	var input models.PropertyInput
	if err := json.Unmarshal(raw, &input); err != nil {
		writeGraphQLError(w, "invalid input variable")
		return
	}
	if fields := input.Validate(); fields != nil {
		writeGraphQLError(w, (&models.ValidationError{Fields: fields}).Error())
		return
	}

	s.mu.Lock()
	property := models.Property{
		ID:       s.nextID,
		Image:    input.Image,
		Title:    input.Title,
		Type:     input.Type,
		Location: input.Location,
		Details:  input.Details,
		Host:     input.Host,
		Price:    input.Price,
		Rating:   float64(input.Rating),
	}
	s.nextID++
	s.properties = append(s.properties, property)
	s.mu.Unlock()

	log.Printf("Property %d (%s) added", property.ID, property.Title)
	writeGraphQLData(w, map[string]interface{}{"addProperty": property})
}

func (s *Server) propertyByID(w http.ResponseWriter, req graphqlRequest) {
	id, ok := req.Variables["id"].(float64)
	if !ok {
		writeGraphQLError(w, "id variable must be an Int")
		return
	}

	for _, p := range s.snapshot() {
		if p.ID == int(id) {
			writeGraphQLData(w, map[string]interface{}{"property": p})
			return
		}
	}
	writeGraphQLData(w, map[string]interface{}{"property": nil})
}

func writeGraphQLData(w http.ResponseWriter, data map[string]interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func writeGraphQLError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": []map[string]string{{"message": msg}},
	})
}
