package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/machinebox/graphql"

	"property-shell/models"
)

const addPropertyMutation = `
mutation AddProperty($input: PropertyInput!) {
  addProperty(input: $input) {
    id
    image
    title
    type
    location
    details
    host
    price
    rating
  }
}`

const getPropertiesQuery = `
query GetProperties {
  properties {
    id
    image
    title
    type
    location
    details
    host
    price
    rating
  }
}`

const getPropertyQuery = `
query GetProperty($id: Int!) {
  property(id: $id) {
    id
    image
    title
    type
    location
    details
    host
    price
    rating
  }
}`

// AddProperty validates the input at the form boundary and, only when it
// passes, runs the addProperty mutation. The mutation is never retried.
func (g *Gateway) AddProperty(ctx context.Context, in models.PropertyInput) (*models.Property, error) {
	if fields := in.Validate(); fields != nil {
		return nil, &models.ValidationError{Fields: fields}
	}

	req := graphql.NewRequest(addPropertyMutation)
	req.Var("input", in)
	g.decorate(req.Header)

	var resp struct {
		AddProperty models.Property `json:"addProperty"`
	}
	if err := g.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("addProperty mutation: %w", err)
	}
	log.Printf("Property %d added via GraphQL", resp.AddProperty.ID)
	return &resp.AddProperty, nil
}

// Properties is the GraphQL mirror of ListProperties.
func (g *Gateway) Properties(ctx context.Context) ([]models.Property, error) {
	req := graphql.NewRequest(getPropertiesQuery)
	g.decorate(req.Header)

	var resp struct {
		Properties []models.Property `json:"properties"`
	}
	if err := g.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("properties query: %w", err)
	}
	return resp.Properties, nil
}

// Property fetches a single record by id, returning models.ErrNotFound when
// the server answers with a null property.
func (g *Gateway) Property(ctx context.Context, id int) (*models.Property, error) {
	req := graphql.NewRequest(getPropertyQuery)
	req.Var("id", id)
	g.decorate(req.Header)

	var resp struct {
		Property *models.Property `json:"property"`
	}
	if err := g.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("property query: %w", err)
	}
	if resp.Property == nil {
		return nil, models.ErrNotFound
	}
	return resp.Property, nil
}
