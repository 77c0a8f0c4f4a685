package service

import (
	"strings"

	"telegram-shop/model"
)

const CategoryAll = "all"

var categoryNames = map[string]string{
	"electronics": "Электроника",
	"clothing":    "Одежда",
	"home":        "Дом",
	"sports":      "Спорт",
	CategoryAll:   "Все товары",
}

// CategoryName returns the display name of a category tag, or the tag itself.
func CategoryName(tag string) string {
	if name, ok := categoryNames[tag]; ok {
		return name
	}
	return tag
}

// Catalog is an immutable, in-memory product list.
type Catalog struct {
	products []model.Product
}

func NewCatalog(products []model.Product) *Catalog {
	return &Catalog{products: append([]model.Product(nil), products...)}
}

// List filters by category (empty or "all" matches everything) and by a
// case-insensitive substring of title or description.
func (c *Catalog) List(category, search string) []model.Product {
	query := strings.ToLower(strings.TrimSpace(search))
	out := []model.Product{}
	for _, p := range c.products {
		if category != "" && category != CategoryAll && p.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) Find(id int64) (model.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, model.ErrProductNotFound
}

// Page returns the 1-based page of products. A non-positive size disables paging.
func Page(products []model.Product, page, size int) []model.Product {
	if size <= 0 {
		return products
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(products) {
		return []model.Product{}
	}
	end := start + size
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}

// DefaultProducts is the demo assortment the shop starts with.
func DefaultProducts() []model.Product {
	return []model.Product{
		{
			ID:          1,
			Title:       "iPhone 15 Pro",
			Description: "Новейший смартфон с титановым корпусом и чипом A17 Pro",
			Price:       89990,
			OldPrice:    99990,
			Image:       "https://via.placeholder.com/300x200/667eea/ffffff?text=iPhone+15+Pro",
			Category:    "electronics",
			InStock:     true,
		},
		{
			ID:          2,
			Title:       "MacBook Air M2",
			Description: "Ультратонкий ноутбук с чипом M2 и дисплеем Liquid Retina",
			Price:       119990,
			OldPrice:    139990,
			Image:       "https://via.placeholder.com/300x200/764ba2/ffffff?text=MacBook+Air+M2",
			Category:    "electronics",
			InStock:     true,
		},
		{
			ID:          3,
			Title:       "Nike Air Max 270",
			Description: "Удобные кроссовки с максимальной амортизацией",
			Price:       12990,
			OldPrice:    15990,
			Image:       "https://via.placeholder.com/300x200/ff6b6b/ffffff?text=Nike+Air+Max",
			Category:    "sports",
			InStock:     true,
		},
		{
			ID:          4,
			Title:       "Джинсы Levi's 501",
			Description: "Классические прямые джинсы из денима премиум качества",
			Price:       5990,
			OldPrice:    7990,
			Image:       "https://via.placeholder.com/300x200/4ecdc4/ffffff?text=Levi's+501",
			Category:    "clothing",
			InStock:     true,
		},
		{
			ID:          5,
			Title:       "Кофемашина De'Longhi",
			Description: "Автоматическая кофемашина для приготовления эспрессо и капучино",
			Price:       45990,
			OldPrice:    52990,
			Image:       "https://via.placeholder.com/300x200/45b7d1/ffffff?text=Coffee+Machine",
			Category:    "home",
			InStock:     true,
		},
	}
}
