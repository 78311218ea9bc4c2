package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

type ProductInput struct {
	SellerID    primitive.ObjectID
	Name        string
	Description string
	Price       int64
	Stock       int64
	Images      []string
}

// Products manages the seller catalog that event line items are priced from.
type Products struct {
	store ProductStore
	now   func() time.Time
}

func (p *Products) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if p.store == nil {
		return nil, unavailable("catalog is read only", nil)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	if in.SellerID.IsZero() {
		return nil, validationf("seller is required")
	}
	if in.Price <= 0 {
		return nil, validationf("price must be greater than 0")
	}
	if in.Stock < 0 {
		return nil, validationf("stock cannot be negative")
	}

	now := p.now()
	product := &models.Product{
		ID:          primitive.NewObjectID(),
		SellerID:    in.SellerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Images:      append([]string{}, in.Images...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.InsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (p *Products) List(ctx context.Context, sellerID *primitive.ObjectID) ([]models.Product, error) {
	if p.store == nil {
		return []models.Product{}, nil
	}
	return p.store.ListProducts(ctx, sellerID)
}
