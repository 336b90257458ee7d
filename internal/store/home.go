package store

import (
	"context"
	"fmt"
	"time"
)

// HomeSnapshot is the aggregate payload behind the mini-program home page,
// cached as a single entry and rebuilt wholesale on refresh.
type HomeSnapshot struct {
	Attractions []Attraction        `json:"attractions"`
	Products    []Product           `json:"products"`
	Articles    []Article           `json:"articles"`
	Configs     []MiniProgramConfig `json:"configs"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Home assembles home page snapshots from the catalog stores.
type Home struct {
	attractions *Attractions
	products    *Products
	articles    *Articles
	configs     *Configs
}

func NewHome(attractions *Attractions, products *Products, articles *Articles, configs *Configs) *Home {
	return &Home{
		attractions: attractions,
		products:    products,
		articles:    articles,
		configs:     configs,
	}
}

// Snapshot builds a fresh home payload. Any failing section fails the whole
// snapshot: a partially stale home page is worse than keeping the previous
// cached entry.
func (h *Home) Snapshot(ctx context.Context) (*HomeSnapshot, error) {
	attractions, err := h.attractions.ListPublished(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("loading home attractions: %w", err)
	}

	products, err := h.products.ListPublished(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("loading home products: %w", err)
	}

	articles, err := h.articles.ListRecommended(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("loading home articles: %w", err)
	}

	configs, err := h.configs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading home configs: %w", err)
	}

	return &HomeSnapshot{
		Attractions: attractions,
		Products:    products,
		Articles:    articles,
		Configs:     configs,
		GeneratedAt: time.Now(),
	}, nil
}
