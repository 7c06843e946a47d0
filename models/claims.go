package models

import "encoding/json"

// Claims is the identity provider's view of the signed-in user. Well-known
// fields are named; anything else the provider sends lands in Extra so no
// claim is silently lost.
type Claims struct {
	Subject string
	Name    string
	Email   string
	Groups  []string
	Extra   map[string]interface{}
}

func (c *Claims) UnmarshalJSON(data []byte) error {
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["sub"].(string); ok {
		c.Subject = v
		delete(raw, "sub")
	}
	if v, ok := raw["name"].(string); ok {
		c.Name = v
		delete(raw, "name")
	}
	if v, ok := raw["email"].(string); ok {
		c.Email = v
		delete(raw, "email")
	}
	if v, ok := raw["groups"]; ok {
		c.Groups = groupList(v)
		delete(raw, "groups")
	}
	c.Extra = raw
	return nil
}

// groupList tolerates both a JSON array and the single-string form some
// providers use for a lone group.
func groupList(v interface{}) []string {
	switch g := v.(type) {
	case string:
		return []string{g}
	case []interface{}:
		groups := make([]string, 0, len(g))
		for _, item := range g {
			if s, ok := item.(string); ok {
				groups = append(groups, s)
			}
		}
		return groups
	}
	return nil
}

// HasAnyRole reports whether the claims' groups intersect the required set.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		for _, group := range c.Groups {
			if group == role {
				return true
			}
		}
	}
	return false
}
