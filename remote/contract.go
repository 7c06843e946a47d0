package remote

import "property-shell/models"

// The prop contracts below are the integration seam between the shell and
// independently deployed capabilities. They are versioned: a remote declaring
// a different contract version for a capability is rejected at load time
// instead of failing mid-render.

const (
	GridContractVersion = 1
	CardContractVersion = 1
	AppContractVersion  = 1
)

// Capability names the shell knows how to host.
const (
	CapabilityGrid = "PropertyGrid"
	CapabilityCard = "PropertyCard"
	CapabilityApp  = "PropertyApp"
)

// GridProps is the contract for the grid capability: an optional search term
// and a click notification carrying the property identifier.
type GridProps struct {
	SearchTerm      string
	OnPropertyClick func(id int)
}

// CardProps is the contract for a single-card capability.
type CardProps struct {
	Property models.Property
}

// AppProps is the contract for the full property app capability, which
// receives the locally loaded collection.
type AppProps struct {
	Properties []models.Property
}
