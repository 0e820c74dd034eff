package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceOffering is a bookable spa service.
type ServiceOffering struct {
	ServiceID       string `json:"serviceId"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
	Price           int64  `json:"price"`
	DiscountedPrice *int64 `json:"discountedPrice,omitempty"`
}

// FinalPrice is the discounted price when one is set.
func (s ServiceOffering) FinalPrice() int64 {
	if s.DiscountedPrice != nil {
		return *s.DiscountedPrice
	}
	return s.Price
}

// Catalog resolves service identifiers at booking time.
type Catalog interface {
	Lookup(ctx context.Context, serviceID string) (*ServiceOffering, error)
}

// StaticCatalog serves a fixed set of offerings, typically loaded from configuration.
type StaticCatalog struct {
	offerings map[string]ServiceOffering
}

// NewStaticCatalog indexes offerings by id. Offerings without a positive duration are rejected.
func NewStaticCatalog(offerings []ServiceOffering) (*StaticCatalog, error) {
	c := &StaticCatalog{offerings: make(map[string]ServiceOffering, len(offerings))}
	for _, o := range offerings {
		o.ServiceID = strings.TrimSpace(o.ServiceID)
		if o.ServiceID == "" {
			return nil, errors.New("bookings: catalog entry missing serviceId")
		}
		if o.DurationMinutes <= 0 {
			return nil, fmt.Errorf("bookings: catalog entry %s has no duration", o.ServiceID)
		}
		c.offerings[o.ServiceID] = o
	}
	return c, nil
}

// ParseStaticCatalog reads a JSON array of offerings. Empty input yields an empty catalog.
func ParseStaticCatalog(raw string) (*StaticCatalog, error) {
	if strings.TrimSpace(raw) == "" {
		return NewStaticCatalog(nil)
	}
	var offerings []ServiceOffering
	if err := json.Unmarshal([]byte(raw), &offerings); err != nil {
		return nil, fmt.Errorf("bookings: parse service catalog: %w", err)
	}
	return NewStaticCatalog(offerings)
}

func (c *StaticCatalog) Lookup(ctx context.Context, serviceID string) (*ServiceOffering, error) {
	o, ok := c.offerings[serviceID]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &o, nil
}

// PostgresCatalog reads offerings from the services table.
type PostgresCatalog struct {
	pool Querier
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresCatalog{pool: pool}
}

func (c *PostgresCatalog) Lookup(ctx context.Context, serviceID string) (*ServiceOffering, error) {
	query := `
		SELECT service_id, name, category, duration_minutes, price, discounted_price
		FROM services
		WHERE service_id = $1 AND active
	`
	var (
		o        ServiceOffering
		category *string
	)
	err := c.pool.QueryRow(ctx, query, serviceID).
		Scan(&o.ServiceID, &o.Name, &category, &o.DurationMinutes, &o.Price, &o.DiscountedPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: lookup service: %w", err)
	}
	if category != nil {
		o.Category = *category
	}
	return &o, nil
}
