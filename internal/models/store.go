package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Country     string    `json:"country"`
	Currency    string    `json:"currency"`
	LogoURL     *string   `json:"logo_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is an entry in the shared catalog.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Currency    string          `json:"currency"`
	Images      []string        `json:"images"`
	Category    *string         `json:"category,omitempty"`
	SourceURL   *string         `json:"source_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StoreProduct is a catalog product as listed by one store.
type StoreProduct struct {
	Product
	StoreID   uuid.UUID       `json:"store_id"`
	Price     decimal.Decimal `json:"price"`
	IsVisible bool            `json:"is_visible"`
}

type StoreWithProducts struct {
	Store
	Products []StoreProduct `json:"products"`
}

type Review struct {
	ID           uuid.UUID  `json:"id"`
	StoreID      uuid.UUID  `json:"store_id"`
	ProductID    uuid.UUID  `json:"product_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ReviewerName string     `json:"reviewer_name"`
	Rating       int        `json:"rating"`
	Comment      *string    `json:"comment,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Question struct {
	ID         uuid.UUID  `json:"id"`
	StoreID    uuid.UUID  `json:"store_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	AskerName  string     `json:"asker_name"`
	Question   string     `json:"question"`
	Answer     *string    `json:"answer,omitempty"`
	AnsweredBy *uuid.UUID `json:"answered_by,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
