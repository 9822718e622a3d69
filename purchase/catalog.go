package purchase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/types"
)

// Product is one purchasable word pack.
type Product struct {
	ID        string      `json:"id" toml:"id"`
	Words     types.Words `json:"words" toml:"words"`
	ValidDays int         `json:"valid_days" toml:"valid_days"`
}

// Default store product ids.
const (
	ProductWordPack500K = "wordpack.500k"
	ProductWordPack2M   = "wordpack.2m"
	ProductWordPack6M   = "wordpack.6m"
)

// Catalog maps store product ids to word packs.
type Catalog struct {
	products map[string]Product
}

// NewCatalog builds a catalog, rejecting empty ids, duplicate ids and
// non-positive amounts.
func NewCatalog(products ...Product) (*Catalog, error) {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		switch {
		case p.ID == "":
			return nil, wordledger.ValidationError{Field: "product_id", Message: "must not be empty"}
		case !p.Words.IsPositive():
			return nil, wordledger.ValidationError{Field: "words", Message: fmt.Sprintf("product %q must grant words", p.ID)}
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, wordledger.ValidationError{Field: "product_id", Message: fmt.Sprintf("duplicate product %q", p.ID)}
		}
		c.products[p.ID] = p
	}
	return c, nil
}

// DefaultCatalog returns the standard 500K, 2M and 6M packs, each valid
// for the engine's default validity.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(
		Product{ID: ProductWordPack500K, Words: types.Words500K, ValidDays: wordledger.DefaultValidDays},
		Product{ID: ProductWordPack2M, Words: types.Words2M, ValidDays: wordledger.DefaultValidDays},
		Product{ID: ProductWordPack6M, Words: types.Words6M, ValidDays: wordledger.DefaultValidDays},
	)
	return c
}

// Lookup returns the product for id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.products[strings.TrimSpace(id)]
	return p, ok
}

// WordsFor returns the words granted by product id.
func (c *Catalog) WordsFor(id string) (types.Words, error) {
	p, ok := c.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", wordledger.ErrUnknownProduct, id)
	}
	return p.Words, nil
}

// Products lists the catalog ordered by size.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Words != out[j].Words {
			return out[i].Words < out[j].Words
		}
		return out[i].ID < out[j].ID
	})
	return out
}
