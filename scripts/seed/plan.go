package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/rbac"
)

// Plan is the desired state described by roles.yaml.
type Plan struct {
	Roles []RoleSeed `yaml:"roles"`
	Admin AdminSeed  `yaml:"admin"`
}

// RoleSeed is one role and the permission names it carries, in order.
type RoleSeed struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Permissions []string `yaml:"permissions"`
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Roles    []string `yaml:"roles"`
}

// LoadPlan decodes and checks a seed file against the permission registry.
func LoadPlan(r io.Reader, registry *rbac.Registry) (Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("seed: decode: %w", err)
	}

	var errs []error
	roles := make(map[string]bool, len(plan.Roles))
	for i, role := range plan.Roles {
		name := strings.TrimSpace(role.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("roles[%d]: name is required", i))
			continue
		}
		if roles[name] {
			errs = append(errs, fmt.Errorf("role %q declared twice", name))
		}
		roles[name] = true
		plan.Roles[i].Name = name
		for _, perm := range role.Permissions {
			if !registry.Has(perm) {
				errs = append(errs, fmt.Errorf("role %q: unknown permission %q", name, perm))
			}
		}
	}

	if plan.Admin.Username != "" {
		username, err := auth.NormalizeUsername(plan.Admin.Username)
		if err != nil {
			errs = append(errs, fmt.Errorf("admin: username: %w", err))
		}
		plan.Admin.Username = username
		for _, role := range plan.Admin.Roles {
			if !roles[role] {
				errs = append(errs, fmt.Errorf("admin: role %q is not declared", role))
			}
		}
	}
	return plan, errors.Join(errs...)
}
