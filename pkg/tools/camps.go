package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/payment"
)

// Catalog is the commerce surface the tools read and write.
type Catalog interface {
	ListOfferings(ctx context.Context, f commerce.OfferingFilter) ([]commerce.Offering, error)
	CheckAvailability(ctx context.Context, productID int64) (*commerce.Availability, error)
	CreateBooking(ctx context.Context, req commerce.BookingRequest) (*commerce.Booking, error)
	GetOrder(ctx context.Context, orderID int64) (*commerce.OrderStatus, error)
	FindOrdersByEmail(ctx context.Context, email string) ([]commerce.OrderSummary, error)
	ListMerchandise(ctx context.Context) ([]commerce.Product, error)
}

// Payments creates hosted payment pages.
type Payments interface {
	CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (*payment.Link, error)
}

// All returns the seven booking tools in the order they are offered.
func All(c Catalog, p Payments) []Tool {
	return []Tool{
		&CampsTool{catalog: c},
		&AvailabilityTool{catalog: c},
		&BookingTool{catalog: c},
		&PaymentLinkTool{payments: p},
		&OrderStatusTool{catalog: c},
		&MerchTool{catalog: c},
		&FAQTool{},
	}
}

// CampsTool lists the camp weeks on sale.
type CampsTool struct {
	catalog Catalog
}

func (t *CampsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_camps",
		mcp.WithDescription("Récupère la liste des camps de basketball disponibles. Peut filtrer par âge ou mois."),
		mcp.WithNumber("age", mcp.Description("Âge de l'enfant pour filtrer les camps appropriés")),
		mcp.WithNumber("month", mcp.Description("Numéro du mois (6=juin, 7=juillet, 8=août)")),
	)
}

func (t *CampsTool) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var args struct {
		Age   int `json:"age"`
		Month int `json:"month"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	camps, err := t.catalog.ListOfferings(ctx, commerce.OfferingFilter{Age: args.Age, Month: args.Month})
	if err != nil {
		return nil, err
	}
	return struct {
		result
		Camps []commerce.Offering `json:"camps"`
		Total int                 `json:"total"`
	}{result{true}, camps, len(camps)}, nil
}

// AvailabilityTool reports live seats for one camp.
type AvailabilityTool struct {
	catalog Catalog
}

func (t *AvailabilityTool) Definition() mcp.Tool {
	return mcp.NewTool("check_availability",
		mcp.WithDescription("Vérifie le nombre de places disponibles pour un camp spécifique par son ID produit."),
		mcp.WithNumber("product_id", mcp.Required(), mcp.Description("ID du produit camp dans WooCommerce")),
	)
}

func (t *AvailabilityTool) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var args struct {
		ProductID int64 `json:"product_id"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	a, err := t.catalog.CheckAvailability(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	return struct {
		result
		*commerce.Availability
	}{result{true}, a}, nil
}

// MerchTool lists merchandise.
type MerchTool struct {
	catalog Catalog
}

func (t *MerchTool) Definition() mcp.Tool {
	return mcp.NewTool("get_merch",
		mcp.WithDescription("Récupère la liste des produits merchandising Hope Basketball (chandails, accessoires, etc.)."),
	)
}

func (t *MerchTool) Run(ctx context.Context, _ json.RawMessage) (any, error) {
	products, err := t.catalog.ListMerchandise(ctx)
	if err != nil {
		return nil, err
	}
	return struct {
		result
		Products []commerce.Product `json:"products"`
		Total    int                `json:"total"`
	}{result{true}, products, len(products)}, nil
}
