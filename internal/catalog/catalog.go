// Package catalog holds the canonical product records the advisor may show.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/advisor/internal/domain"
)

//go:embed fixtures/products.yaml
var productsYAML []byte

// Catalog is an immutable, id-indexed product list.
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// New indexes the given products. Later duplicates of an id are rejected.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{products: products, byID: make(map[string]int, len(products))}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product at index %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

// Parse decodes a YAML document with a top-level "products" list.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Products []domain.Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(doc.Products)
}

// Default returns the built-in storefront catalog.
func Default() *Catalog {
	c, err := Parse(productsYAML)
	if err != nil {
		panic("catalog: embedded fixture is invalid: " + err.Error())
	}
	return c
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// MustLookup is Lookup for ids known to be in the catalog.
func (c *Catalog) MustLookup(id string) domain.Product {
	p, ok := c.Lookup(id)
	if !ok {
		panic("catalog: unknown product " + id)
	}
	return p
}

// Resolve returns the products for ids in order, skipping unknown ids.
func (c *Catalog) Resolve(ids ...string) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.Lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// All returns every product in catalog order.
func (c *Catalog) All() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

// Len reports the number of products.
func (c *Catalog) Len() int { return len(c.products) }
