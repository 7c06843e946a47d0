package stub

import (
	"net/http"

	"property-shell/remote"
)

// remoteEntryJS stands in for the remote's entry bundle in development.
const remoteEntryJS = "// property-shell dev remote entry\n"

// RemoteManifest serves the federation manifest so the loader can resolve
// capabilities against the stub during development.
func (s *Server) RemoteManifest() http.HandlerFunc {
	manifest := remote.Manifest{
		Name:  "cards",
		Entry: "assets/remoteEntry.js",
		Exposes: []remote.Capability{
			{Name: remote.CapabilityGrid, Module: "./PropertyGrid", ContractVersion: remote.GridContractVersion},
			{Name: remote.CapabilityCard, Module: "./PropertyCard", ContractVersion: remote.CardContractVersion},
			{Name: remote.CapabilityApp, Module: "./PropertyApp", ContractVersion: remote.AppContractVersion},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manifest)
	}
}

// RemoteEntry serves the entry bundle placeholder.
func (s *Server) RemoteEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(remoteEntryJS))
	}
}
