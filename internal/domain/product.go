package domain

// Product is a catalog item.
type Product struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Brand            string            `json:"brand" yaml:"brand"`
	Category         string            `json:"category" yaml:"category"`
	Price            float64           `json:"price" yaml:"price"`
	Currency         string            `json:"currency" yaml:"currency"`
	Description      string            `json:"description" yaml:"description"`
	ShortDescription string            `json:"shortDescription" yaml:"shortDescription"`
	ImageURL         string            `json:"imageUrl" yaml:"imageUrl"`
	Images           []string          `json:"images,omitempty" yaml:"images,omitempty"`
	Attributes       ProductAttributes `json:"attributes" yaml:"attributes"`
	Rating           float64           `json:"rating" yaml:"rating"`
	ReviewCount      int               `json:"reviewCount" yaml:"reviewCount"`
	InStock          bool              `json:"inStock" yaml:"inStock"`
	// PersonalizationScore ranks products for a shopper; zero when unscored.
	PersonalizationScore float64         `json:"personalizationScore,omitempty" yaml:"personalizationScore,omitempty"`
	UnitOfMeasure        string          `json:"unitOfMeasure,omitempty" yaml:"unitOfMeasure,omitempty"`
	MinOrderQty          int             `json:"minOrderQty,omitempty" yaml:"minOrderQty,omitempty"`
	BulkPricing          []BulkPriceTier `json:"bulkPricing,omitempty" yaml:"bulkPricing,omitempty"`
}

// ProductAttributes carries the merchandising details of a product.
type ProductAttributes struct {
	ProjectType []string `json:"projectType,omitempty" yaml:"projectType,omitempty"`
	Specs       []string `json:"specs,omitempty" yaml:"specs,omitempty"`
	Materials   []string `json:"materials,omitempty" yaml:"materials,omitempty"`
	Size        string   `json:"size,omitempty" yaml:"size,omitempty"`
	Warranty    string   `json:"warranty,omitempty" yaml:"warranty,omitempty"`
	IsPro       bool     `json:"isPro,omitempty" yaml:"isPro,omitempty"`
	IsBulk      bool     `json:"isBulk,omitempty" yaml:"isBulk,omitempty"`
}

// BulkPriceTier is a quantity break.
type BulkPriceTier struct {
	Qty   int     `json:"qty" yaml:"qty"`
	Price float64 `json:"price" yaml:"price"`
}
