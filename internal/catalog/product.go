package catalog

import "time"

type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryClothing    Category = "Clothing"
	CategoryBooks       Category = "Books"
	CategoryHome        Category = "Home"
	CategorySports      Category = "Sports"
	CategoryOther       Category = "Other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome, CategorySports, CategoryOther:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    Category  `json:"category"`
	ImageURL    string    `json:"image_url"`
	Stock       int       `json:"stock"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SortOrder string

const (
	SortByName      SortOrder = "name"
	SortByPriceAsc  SortOrder = "price_asc"
	SortByPriceDesc SortOrder = "price_desc"
	SortByNewest    SortOrder = "newest"
)

// Filter is a structured query configuration: enumerated fields only,
// never caller-supplied SQL fragments.
type Filter struct {
	Category Category
	Search   string
	MinPrice *float64
	MaxPrice *float64
	Featured *bool
	Sort     SortOrder
}

// Deduction is one line of a stock deduction request at checkout commit.
type Deduction struct {
	ProductID int64
	Quantity  int
}
