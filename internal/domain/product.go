package domain

import "time"

// Product is the reference catalog entity managed through the generic
// repository and service stack. It demonstrates the full contract a concrete
// entity provides: the embedded Entity base, a schema descriptor, and the
// publication lifecycle consumed by its service hooks.
//
// Fields:
//   - Name: required display name; part of the default search field set.
//   - Description: optional long text; part of the default search field set.
//   - Status: publication lifecycle (draft/active/inactive).
//   - Featured: marks the product for the cached featured-items aggregate.
//   - Price: unit price in minor currency units.
//   - PublishedAt: stamped on the first transition to active, cleared when
//     the product leaves active.
type Product struct {
	Entity

	Name        string     `json:"name"         gorm:"type:varchar(255);not null;index"`
	Description string     `json:"description"  gorm:"type:text"`
	Status      Status     `json:"status"       gorm:"type:varchar(16);not null;default:'draft';index"`
	Featured    bool       `json:"featured"     gorm:"not null;default:false;index"`
	Price       int64      `json:"price"        gorm:"not null;default:0"`
	PublishedAt *time.Time `json:"published_at"`
}

// TableName implements the GORM tabler interface.
func (Product) TableName() string { return "products" }

// Schema returns the fixed descriptor consumed by the generic layers.
func (Product) Schema() Schema {
	return Schema{
		Name:         "product",
		Table:        "products",
		Searchable:   []string{"name", "description"},
		TenantScoped: true,
	}
}
