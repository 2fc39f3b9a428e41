// Package customer resolves who the shopper is: demo personas, the
// identity resolver, the profile store and the active persona selection.
package customer

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/advisor/internal/domain"
)

//go:embed fixtures/personas.yaml
var personasYAML []byte

var (
	// ErrPersonaNotFound is returned for an unknown persona id or email.
	ErrPersonaNotFound = errors.New("persona not found")
	// ErrProfileNotFound is returned when the profile store has no record.
	ErrProfileNotFound = errors.New("customer profile not found")
)

// Persona is a selectable demo shopper.
type Persona struct {
	ID       string                 `json:"id" yaml:"id"`
	Label    string                 `json:"label" yaml:"label"`
	Subtitle string                 `json:"subtitle" yaml:"subtitle"`
	Traits   []string               `json:"traits" yaml:"traits"`
	Space    domain.Space           `json:"space" yaml:"space"`
	Profile  domain.CustomerProfile `json:"-" yaml:"profile"`
}

// Personas is an immutable, id-indexed persona list.
type Personas struct {
	list []Persona
	byID map[string]int
}

// NewPersonas indexes personas, rejecting missing or duplicate ids.
func NewPersonas(list []Persona) (*Personas, error) {
	p := &Personas{list: list, byID: make(map[string]int, len(list))}
	for i, ps := range list {
		if ps.ID == "" {
			return nil, fmt.Errorf("persona at index %d has no id", i)
		}
		if _, dup := p.byID[ps.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", ps.ID)
		}
		p.byID[ps.ID] = i
	}
	return p, nil
}

// ParsePersonas decodes a YAML document with a top-level "personas" list.
func ParsePersonas(data []byte) (*Personas, error) {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing personas: %w", err)
	}
	return NewPersonas(doc.Personas)
}

// DefaultPersonas returns the built-in demo personas.
func DefaultPersonas() *Personas {
	p, err := ParsePersonas(personasYAML)
	if err != nil {
		panic("customer: embedded personas are invalid: " + err.Error())
	}
	return p
}

// Get returns the persona with the given id.
func (p *Personas) Get(id string) (Persona, bool) {
	i, ok := p.byID[id]
	if !ok {
		return Persona{}, false
	}
	return p.list[i], true
}

// All returns every persona in fixture order.
func (p *Personas) All() []Persona {
	return append([]Persona(nil), p.list...)
}

// InSpace returns the personas of one space; an empty space means all.
func (p *Personas) InSpace(space domain.Space) []Persona {
	if space == "" {
		return p.All()
	}
	var out []Persona
	for _, ps := range p.list {
		if ps.Space == space {
			out = append(out, ps)
		}
	}
	return out
}

// ByEmail finds the persona whose profile has the given email address.
func (p *Personas) ByEmail(email string) (Persona, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Persona{}, false
	}
	for _, ps := range p.list {
		if strings.EqualFold(ps.Profile.Email, email) {
			return ps, true
		}
	}
	return Persona{}, false
}

// ByMerkuryID finds the persona whose profile resolves to id.
func (p *Personas) ByMerkuryID(id string) (Persona, bool) {
	if id == "" {
		return Persona{}, false
	}
	for _, ps := range p.list {
		if mi := ps.Profile.MerkuryIdentity; mi != nil && mi.MerkuryID == id {
			return ps, true
		}
	}
	return Persona{}, false
}
