// Package catalog holds the static list of chat models offered in the model
// picker and resolves the "auto" alias to its upstream model.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed models.json
var bundledModels []byte

const (
	DefaultChatModel = "auto"
	AutoTarget       = "meta-llama/Meta-Llama-3.1-405B-Instruct"
	defaultImage     = "/model-icons/default.jpg"

	ProviderID   = "custom-provider"
	ProviderName = "Custom AI Provider"
)

type ChatModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Image         string `json:"image,omitempty"`
	LinkedModelID string `json:"linkedModelId,omitempty"`
}

type Provider struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Models []ChatModel `json:"models"`
}

type Catalog struct {
	models []ChatModel
	byID   map[string]int
}

type modelFile struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Load builds the catalog from a model list file. An empty path uses the
// bundled list.
func Load(path string) (*Catalog, error) {
	raw := bundledModels
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model catalog: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var file modelFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int)}
	c.add(ChatModel{
		ID:            DefaultChatModel,
		Name:          "Auto",
		Description:   "Automatically uses the best model (Meta Llama 3.1 405B)",
		Image:         defaultImage,
		LinkedModelID: AutoTarget,
	})

	for _, m := range file.Data {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		c.add(ChatModel{
			ID:          id,
			Name:        DisplayName(id),
			Description: "Provider: " + strings.SplitN(id, "/", 2)[0],
			Image:       defaultImage,
		})
	}

	return c, nil
}

func (c *Catalog) add(m ChatModel) {
	if _, exists := c.byID[m.ID]; exists {
		return
	}
	c.byID[m.ID] = len(c.models)
	c.models = append(c.models, m)
}

// DisplayName turns "meta-llama/Meta-Llama-3.1-8B-Instruct" into
// "Meta Llama 3.1 8B Instruct".
func DisplayName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	words := strings.Split(strings.ReplaceAll(id, "-", " "), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Models returns a copy of every entry, "auto" first.
func (c *Catalog) Models() []ChatModel {
	out := make([]ChatModel, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Default() ChatModel {
	return c.models[0]
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// ByID returns the entry for id, or the default entry for unknown ids.
func (c *Catalog) ByID(id string) ChatModel {
	if i, ok := c.byID[id]; ok {
		return c.models[i]
	}
	return c.Default()
}

// ActualModelID is the id sent upstream: aliases resolve to their linked model.
func (c *Catalog) ActualModelID(id string) string {
	m := c.ByID(id)
	if m.LinkedModelID != "" {
		return m.LinkedModelID
	}
	return m.ID
}

// Search filters by case-insensitive substring over name, description and id.
func (c *Catalog) Search(query string) []ChatModel {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Models()
	}

	var out []ChatModel
	for _, m := range c.models {
		if strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Description), q) ||
			strings.Contains(strings.ToLower(m.ID), q) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) Providers() []Provider {
	return []Provider{{ID: ProviderID, Name: ProviderName, Models: c.Models()}}
}
