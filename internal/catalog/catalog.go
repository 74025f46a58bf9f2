// Package catalog holds the fixed table of provisionable resource types and
// their parameter schemas. The table is built once at package init and never
// mutated; every accessor returns a copy.
package catalog

import (
	"errors"
	"fmt"

	"github.com/platformhub/platformhub/internal/db/models"
)

// ErrNotFound is returned when a resource type is not in the catalog.
var ErrNotFound = errors.New("resource type not found")

// Parameter type tags
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
)

// ParameterSpec describes one input a requester may supply.
type ParameterSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label" yaml:"label"`
	Type        string   `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Default     *string  `json:"default" yaml:"default,omitempty"`
	Options     []string `json:"options" yaml:"options,omitempty"`
	Description string   `json:"description" yaml:"description,omitempty"`
}

// Item is one catalog entry.
type Item struct {
	ResourceType models.ResourceType `json:"resource_type" yaml:"resource_type"`
	DisplayName  string              `json:"display_name" yaml:"display_name"`
	Description  string              `json:"description" yaml:"description"`
	Parameters   []ParameterSpec     `json:"parameters" yaml:"parameters"`
}

func str(s string) *string { return &s }

func param(name, label, typ string, def *string, options []string, description string) ParameterSpec {
	return ParameterSpec{
		Name:        name,
		Label:       label,
		Type:        typ,
		Required:    true,
		Default:     def,
		Options:     options,
		Description: description,
	}
}

var items = []Item{
	{
		ResourceType: models.ResourceK8sNamespace,
		DisplayName:  "Kubernetes Namespace",
		Description:  "Provision a new namespace with resource quotas, network policies, and RBAC configured for your team.",
		Parameters: []ParameterSpec{
			param("cpu_limit", "CPU Limit", TypeString, str("1"), []string{"500m", "1", "2", "4"}, "Maximum CPU cores for the namespace"),
			param("memory_limit", "Memory Limit", TypeString, str("1Gi"), []string{"512Mi", "1Gi", "2Gi", "4Gi"}, "Maximum memory for the namespace"),
			param("team", "Team", TypeString, nil, nil, "Owning team label"),
		},
	},
	{
		ResourceType: models.ResourceS3Bucket,
		DisplayName:  "S3 Bucket",
		Description:  "Provision an S3 bucket with encryption, versioning, and lifecycle policies pre-configured.",
		Parameters: []ParameterSpec{
			param("versioning", "Enable Versioning", TypeBoolean, str("true"), nil, "Enable object versioning"),
			param("region", "AWS Region", TypeString, str("eu-west-1"), []string{"eu-west-1", "eu-central-1", "us-east-1"}, "AWS region for the bucket"),
		},
	},
	{
		ResourceType: models.ResourceRDSDatabase,
		DisplayName:  "RDS Database",
		Description:  "Provision a managed PostgreSQL database with automated backups, encryption at rest, and multi-AZ support.",
		Parameters: []ParameterSpec{
			param("engine_version", "PostgreSQL Version", TypeString, str("16"), []string{"14", "15", "16"}, "PostgreSQL engine version"),
			param("instance_class", "Instance Class", TypeString, str("db.t3.micro"), []string{"db.t3.micro", "db.t3.small", "db.t3.medium"}, "RDS instance type"),
			param("storage_gb", "Storage (GB)", TypeNumber, str("20"), nil, "Allocated storage in GB"),
			param("multi_az", "Multi-AZ", TypeBoolean, str("false"), nil, "Enable multi-AZ deployment for high availability"),
		},
	},
}

var index = func() map[models.ResourceType]int {
	m := make(map[models.ResourceType]int, len(items))
	for i, it := range items {
		m[it.ResourceType] = i
	}
	return m
}()

// List returns every catalog entry in declaration order.
func List() []Item {
	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].clone()
	}
	return out
}

// Get returns the entry for t, or ErrNotFound.
func Get(t models.ResourceType) (Item, error) {
	i, ok := index[t]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, t)
	}
	return items[i].clone(), nil
}

// Defaults returns the declared default value of every parameter of t that
// has one. Unknown types yield an empty map.
func Defaults(t models.ResourceType) map[string]string {
	out := map[string]string{}
	i, ok := index[t]
	if !ok {
		return out
	}
	for _, p := range items[i].Parameters {
		if p.Default != nil {
			out[p.Name] = *p.Default
		}
	}
	return out
}

// Declared reports whether name is a declared parameter of t.
func Declared(t models.ResourceType, name string) bool {
	i, ok := index[t]
	if !ok {
		return false
	}
	for _, p := range items[i].Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (it Item) clone() Item {
	params := make([]ParameterSpec, len(it.Parameters))
	for i, p := range it.Parameters {
		if p.Default != nil {
			p.Default = str(*p.Default)
		}
		if p.Options != nil {
			p.Options = append([]string(nil), p.Options...)
		}
		params[i] = p
	}
	it.Parameters = params
	return it
}
