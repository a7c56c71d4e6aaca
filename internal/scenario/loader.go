package scenario

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"pico-faultsim/internal/fault"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Load читает встроенный сценарий по имени
func Load(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: scenario %q not found (available: %s)",
			fault.ErrConfiguration, name, strings.Join(List(), ", "))
	}
	parsed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("builtin scenario %q: %w", name, err)
	}
	return parsed[0], nil
}

// List имена встроенных сценариев, по алфавиту
func List() []string {
	entries, _ := builtinFS.ReadDir("builtin")
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names
}

// LoadFile читает сценарии из файла
func LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return Parse(data)
}

// Catalog отображение имя -> сценарий
type Catalog struct {
	scenarios map[string]*Scenario
}

// NewCatalog пустой каталог
func NewCatalog() *Catalog {
	return &Catalog{scenarios: make(map[string]*Scenario)}
}

// Builtin каталог встроенных сценариев
func Builtin() (*Catalog, error) {
	c := NewCatalog()
	for _, name := range List() {
		s, err := Load(name)
		if err != nil {
			return nil, err
		}
		c.Add(s)
	}
	return c, nil
}

// Add добавляет или заменяет сценарий
func (c *Catalog) Add(s *Scenario) {
	c.scenarios[s.Name] = s
}

// AddFile добавляет сценарии из файла
func (c *Catalog) AddFile(path string) error {
	list, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, s := range list {
		c.Add(s)
	}
	return nil
}

// Get сценарий по имени
func (c *Catalog) Get(name string) (*Scenario, error) {
	s, ok := c.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("%w: scenario %q not found (available: %s)",
			fault.ErrConfiguration, name, strings.Join(c.Names(), ", "))
	}
	return s, nil
}

// Names имена сценариев по алфавиту
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.scenarios))
	for name := range c.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select сценарии по именам; без имен возвращает все
func (c *Catalog) Select(names ...string) ([]*Scenario, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	out := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := c.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
