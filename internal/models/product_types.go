package models

// Product is the catalog view checkout needs. The catalog itself is managed
// elsewhere; this service only reads it by id.
type Product struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Category  string `json:"category" db:"category"`
	Price     Money  `json:"price" db:"price"`
	Image     string `json:"image" db:"image"`
	Available bool   `json:"available" db:"available"`
}
