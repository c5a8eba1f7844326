package lifecycle

import (
	"fmt"
	"sort"
)

// Profile names accepted by the stack's compose files.
const (
	ProfileCPU       = "cpu"
	ProfileGPUNvidia = "gpu-nvidia"
	ProfileGPUAMD    = "gpu-amd"
	ProfileNone      = "none"
)

// Profiles lists the accepted profiles, default first.
var Profiles = []string{ProfileCPU, ProfileGPUNvidia, ProfileGPUAMD, ProfileNone}

// ValidateProfile checks profile against the closed set.
func ValidateProfile(profile string) error {
	for _, p := range Profiles {
		if p == profile {
			return nil
		}
	}
	return fmt.Errorf("invalid profile %q, expected one of %v", profile, Profiles)
}

// Component is one optional part of the stack.
type Component struct {
	ID          string              `yaml:"id" mapstructure:"id"`
	Name        string              `yaml:"name" mapstructure:"name"`
	Description string              `yaml:"description,omitempty" mapstructure:"description"`
	Default     bool                `yaml:"default" mapstructure:"default"`
	Services    []string            `yaml:"services,omitempty" mapstructure:"services"`
	PerProfile  map[string][]string `yaml:"per_profile,omitempty" mapstructure:"per_profile"`
	URL         string              `yaml:"url,omitempty" mapstructure:"url"`
	Port        string              `yaml:"port,omitempty" mapstructure:"port"`
}

// ServicesFor returns the compose services backing the component under
// profile. Components with per-profile services contribute nothing for a
// profile they do not list.
func (c Component) ServicesFor(profile string) []string {
	if c.PerProfile != nil {
		return c.PerProfile[profile]
	}
	return c.Services
}

// DefaultCatalog is the fixed component catalog of the stack.
func DefaultCatalog() []Component {
	return []Component{
		{
			ID: "n8n", Name: "n8n", Description: "Workflow automation", Default: true,
			Services: []string{"n8n-import", "n8n"},
			URL:      "http://localhost:5678", Port: "5678/tcp",
		},
		{
			ID: "open-webui", Name: "Open WebUI", Description: "Chat interface", Default: true,
			Services: []string{"open-webui"},
			URL:      "http://localhost:3000", Port: "3000/tcp",
		},
		{
			ID: "flowise", Name: "Flowise", Description: "Agent builder", Default: true,
			Services: []string{"flowise"},
			URL:      "http://localhost:3001", Port: "3001/tcp",
		},
		{
			ID: "qdrant", Name: "Qdrant", Description: "Vector database", Default: true,
			Services: []string{"qdrant"},
			URL:      "http://localhost:6333", Port: "6333/tcp",
		},
		{
			ID: "searxng", Name: "SearXNG", Description: "Metasearch engine", Default: true,
			Services: []string{"searxng", "redis"},
			URL:      "http://localhost:8080", Port: "8080/tcp",
		},
		{
			ID: "ollama", Name: "Ollama", Description: "Local LLM runtime", Default: true,
			PerProfile: map[string][]string{
				ProfileCPU:       {"ollama-cpu", "ollama-pull-llama-cpu"},
				ProfileGPUNvidia: {"ollama-gpu", "ollama-pull-llama-gpu"},
				ProfileGPUAMD:    {"ollama-gpu-amd", "ollama-pull-llama-gpu-amd"},
			},
			URL: "http://localhost:11434", Port: "11434/tcp",
		},
		{
			ID: "caddy", Name: "Caddy", Description: "Reverse proxy with TLS", Default: false,
			Services: []string{"caddy"},
		},
		{
			ID: "langfuse", Name: "Langfuse", Description: "LLM observability", Default: false,
			Services: []string{"langfuse-worker", "langfuse-web", "clickhouse", "minio", "postgres"},
			URL:      "http://localhost:3002", Port: "3002/tcp",
		},
		{
			ID: "neo4j", Name: "Neo4j", Description: "Graph database", Default: false,
			Services: []string{"neo4j"},
			URL:      "http://localhost:7474", Port: "7474/tcp",
		},
	}
}

// ValidateCatalog checks that component IDs are unique and non-empty.
func ValidateCatalog(catalog []Component) error {
	seen := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		if c.ID == "" {
			return fmt.Errorf("catalog entry without id")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate catalog id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Selection maps component IDs to their enabled flag.
type Selection map[string]bool

// Enabled returns the enabled IDs in sorted order.
func (s Selection) Enabled() []string {
	var out []string
	for id, on := range s {
		if on {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultSelection returns each component's default flag.
func DefaultSelection(catalog []Component) Selection {
	sel := make(Selection, len(catalog))
	for _, c := range catalog {
		sel[c.ID] = c.Default
	}
	return sel
}

// Confirmer asks a yes/no question; an empty answer yields def.
type Confirmer interface {
	Confirm(question string, def bool) (bool, error)
}

// SelectComponents asks about every catalog entry in order. Entries present
// in defaults take that value as the prompt default; others keep their
// catalog default. A nil confirmer accepts every default.
func SelectComponents(catalog []Component, defaults Selection, confirmer Confirmer) (Selection, error) {
	sel := DefaultSelection(catalog)
	for id, on := range defaults {
		if _, ok := sel[id]; ok {
			sel[id] = on
		}
	}
	if confirmer == nil {
		return sel, nil
	}

	for _, c := range catalog {
		question := fmt.Sprintf("Enable %s", c.Name)
		if c.Description != "" {
			question += fmt.Sprintf(" (%s)", c.Description)
		}
		on, err := confirmer.Confirm(question+"?", sel[c.ID])
		if err != nil {
			return nil, fmt.Errorf("component selection: %w", err)
		}
		sel[c.ID] = on
	}
	return sel, nil
}

// Services resolves a selection to compose services for profile, in catalog
// order without duplicates.
func Services(catalog []Component, sel Selection, profile string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range catalog {
		if !sel[c.ID] {
			continue
		}
		for _, s := range c.ServicesFor(profile) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
