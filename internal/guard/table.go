package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vakspot/vakspot/internal/models"
)

// Rule restricts a path prefix to a set of roles. An empty role set admits
// any authenticated principal.
type Rule struct {
	Prefix string        `yaml:"prefix"`
	Roles  []models.Role `yaml:"roles"`
}

// Table is an ordered list of rules; the first matching prefix governs
type Table []Rule

// DefaultTable is the built-in protected route table
func DefaultTable() Table {
	return Table{
		{Prefix: "/client", Roles: []models.Role{models.RoleClient, models.RoleAdmin}},
		{Prefix: "/pro", Roles: []models.Role{models.RolePro, models.RoleAdmin}},
		{Prefix: "/admin", Roles: []models.Role{models.RoleAdmin}},
		{Prefix: "/messages"},
		{Prefix: "/settings"},
		{Prefix: "/profile"},
	}
}

type tableFile struct {
	Routes []struct {
		Prefix string   `yaml:"prefix"`
		Roles  []string `yaml:"roles"`
	} `yaml:"routes"`
}

// LoadTable reads a table from a YAML file of the form
//
//	routes:
//	  - prefix: /client
//	    roles: [CLIENT, ADMIN]
//	  - prefix: /messages
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses and validates YAML route table content
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("route table has no routes")
	}

	table := make(Table, 0, len(file.Routes))
	for i, route := range file.Routes {
		prefix := strings.TrimSuffix(route.Prefix, "/")
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route %d: prefix %q must start with /", i, route.Prefix)
		}

		rule := Rule{Prefix: prefix}
		for _, name := range route.Roles {
			role, ok := models.ParseRole(name)
			if !ok {
				return nil, fmt.Errorf("route %d: unknown role %q", i, name)
			}
			rule.Roles = append(rule.Roles, role)
		}
		table = append(table, rule)
	}
	return table, nil
}

// match returns the first rule whose prefix covers path
func (t Table) match(path string) (Rule, bool) {
	for _, rule := range t {
		if hasPathPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// hasPathPrefix matches on segment boundaries: /client covers /client and
// /client/jobs but not /clients.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
