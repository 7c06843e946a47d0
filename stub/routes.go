package stub

import (
	"github.com/gorilla/mux"

	"property-shell/middleware"
)

// Routes wires the full stub surface onto the router.
func Routes(router *mux.Router, s *Server, hub *ChatHub, provider *OIDCProvider) {
	// Property read API
	router.HandleFunc("/properties", s.ListProperties()).Methods("GET")
	router.HandleFunc("/properties/location/{term}", s.SearchByLocation()).Methods("GET")

	// Write API
	router.HandleFunc("/graphql", s.GraphQL()).Methods("POST")

	// Chat
	router.HandleFunc("/websocket/", hub.ServeWS())

	// Identity provider
	router.HandleFunc("/oauth2/authorize", provider.Authorize()).Methods("GET")
	router.HandleFunc("/oauth2/token", provider.Token()).Methods("POST")
	router.HandleFunc("/oauth2/userinfo", provider.UserInfo()).Methods("GET")
	router.HandleFunc("/oauth2/jwks", provider.JWKS()).Methods("GET")
	router.HandleFunc("/oauth2/logout", provider.Logout()).Methods("GET")

	// Remote module origin
	router.HandleFunc("/assets/remote-manifest.json", s.RemoteManifest()).Methods("GET")
	router.HandleFunc("/assets/remoteEntry.js", s.RemoteEntry()).Methods("GET")

	// Routes that require authentication
	authenticated := router.PathPrefix("/api").Subrouter()
	authenticated.Use(middleware.AuthMiddleware)
	authenticated.HandleFunc("/profile", s.Profile()).Methods("GET")
}
