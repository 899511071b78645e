package tools

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Definition describes one remote-callable tool in the fixed catalog
type Definition struct {
	// Tool carries the MCP name, description and argument schema
	Tool mcp.Tool
	// Category groups tools for listing purposes
	Category string
	// RequiredFeatures gates visibility and execution; empty means the tool
	// is always available
	RequiredFeatures []string
	// Timeout overrides the dispatcher's default timeout when positive
	Timeout time.Duration
	// Handler executes the tool; resolved by the registering collaborator
	Handler Handler
}

// Name returns the tool's unique name
func (d Definition) Name() string {
	return d.Tool.Name
}

// Catalog is an explicit registry of tool definitions, populated once at
// startup. There is no dynamic loading; tools are registered in code.
type Catalog struct {
	mutex sync.RWMutex
	tools map[string]Definition
	order []string
}

// NewCatalog creates an empty tool catalog
func NewCatalog() *Catalog {
	return &Catalog{
		tools: make(map[string]Definition),
	}
}

// Register adds a tool definition to the catalog
func (c *Catalog) Register(def Definition) error {
	if def.Tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Tool.Name)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.tools[def.Tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Tool.Name)
	}

	c.tools[def.Tool.Name] = def
	c.order = append(c.order, def.Tool.Name)
	return nil
}

// MustRegister registers a tool and panics on error; used for the
// compile-time catalog assembled during startup
func (c *Catalog) MustRegister(def Definition) {
	if err := c.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition for a tool name
func (c *Catalog) Get(name string) (Definition, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	def, ok := c.tools[name]
	return def, ok
}

// All returns every registered definition in registration order
func (c *Catalog) All() []Definition {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	defs := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.tools[name])
	}
	return defs
}

// Available returns the tools whose feature requirements are all satisfied.
// A tool with no required features is always listed.
func (c *Catalog) Available(availableFeatures map[string]bool) []Definition {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var defs []Definition
	for _, name := range c.order {
		def := c.tools[name]
		if missing := missingFeatures(def, availableFeatures); len(missing) == 0 {
			defs = append(defs, def)
		}
	}
	return defs
}

// MissingFeatures returns the unmet feature requirements for a tool, sorted
func (c *Catalog) MissingFeatures(name string, availableFeatures map[string]bool) ([]string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	def, ok := c.tools[name]
	if !ok {
		return nil, false
	}
	return missingFeatures(def, availableFeatures), true
}

func missingFeatures(def Definition, availableFeatures map[string]bool) []string {
	var missing []string
	for _, feature := range def.RequiredFeatures {
		if !availableFeatures[feature] {
			missing = append(missing, feature)
		}
	}
	sort.Strings(missing)
	return missing
}
