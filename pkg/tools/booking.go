package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/payment"
)

// BookingTool creates a pending registration order.
type BookingTool struct {
	catalog Catalog
}

func (t *BookingTool) Definition() mcp.Tool {
	return mcp.NewTool("create_booking",
		mcp.WithDescription("Crée une inscription (commande WooCommerce) pour un camp. Requiert les informations du parent et de l'enfant."),
		mcp.WithNumber("product_id", mcp.Required(), mcp.Description("ID du camp choisi")),
		mcp.WithNumber("quantity", mcp.Min(1), mcp.Description("Nombre d'inscriptions (défaut: 1)")),
		mcp.WithString("customer_first_name", mcp.Required(), mcp.Description("Prénom du parent")),
		mcp.WithString("customer_last_name", mcp.Required(), mcp.Description("Nom de famille du parent")),
		mcp.WithString("customer_email", mcp.Required(), mcp.Description("Email du parent")),
		mcp.WithString("customer_phone", mcp.Description("Téléphone du parent")),
		mcp.WithString("child_name", mcp.Required(), mcp.Description("Prénom de l'enfant")),
		mcp.WithNumber("child_age", mcp.Required(), mcp.Description("Âge de l'enfant")),
	)
}

func (t *BookingTool) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var args struct {
		ProductID int64  `json:"product_id"`
		Quantity  int    `json:"quantity"`
		FirstName string `json:"customer_first_name"`
		LastName  string `json:"customer_last_name"`
		Email     string `json:"customer_email"`
		Phone     string `json:"customer_phone"`
		ChildName string `json:"child_name"`
		ChildAge  int    `json:"child_age"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	if !strings.Contains(args.Email, "@") {
		return nil, invalidf("customer_email %q is not an email address", args.Email)
	}
	b, err := t.catalog.CreateBooking(ctx, commerce.BookingRequest{
		ProductID: args.ProductID,
		Quantity:  args.Quantity,
		FirstName: args.FirstName,
		LastName:  args.LastName,
		Email:     args.Email,
		Phone:     args.Phone,
		ChildName: args.ChildName,
		ChildAge:  args.ChildAge,
	})
	if err != nil {
		return nil, err
	}
	return struct {
		result
		*commerce.Booking
		Message string `json:"message"`
	}{result{true}, b, "Commande créée. Générez maintenant le lien de paiement."}, nil
}

// PaymentLinkToolName is the name under which PaymentLinkTool is registered.
const PaymentLinkToolName = "create_payment_link"

// PaymentLinkTool creates a Stripe payment link for an existing order.
type PaymentLinkTool struct {
	payments Payments
}

func (t *PaymentLinkTool) Definition() mcp.Tool {
	return mcp.NewTool(PaymentLinkToolName,
		mcp.WithDescription("Génère un lien de paiement Stripe sécurisé pour une commande existante."),
		mcp.WithNumber("order_id", mcp.Required(), mcp.Description("ID de la commande WooCommerce")),
		mcp.WithString("camp_name", mcp.Required(), mcp.Description("Nom du camp pour le reçu")),
		mcp.WithString("price", mcp.Required(), mcp.Description(`Prix en dollars (ex: "350.00")`)),
		mcp.WithString("customer_email", mcp.Description("Email du client")),
		mcp.WithString("child_name", mcp.Description("Nom de l'enfant inscrit")),
	)
}

func (t *PaymentLinkTool) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var args struct {
		OrderID       int64  `json:"order_id"`
		CampName      string `json:"camp_name"`
		Price         string `json:"price"`
		CustomerEmail string `json:"customer_email"`
		ChildName     string `json:"child_name"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	link, err := t.payments.CreatePaymentLink(ctx, payment.LinkRequest{
		OrderID:       args.OrderID,
		CampName:      args.CampName,
		Price:         args.Price,
		CustomerEmail: args.CustomerEmail,
		ChildName:     args.ChildName,
	})
	if err != nil {
		return nil, err
	}
	return struct {
		result
		*payment.Link
	}{result{true}, link}, nil
}

// OrderStatusTool looks an order up by number or by customer email.
type OrderStatusTool struct {
	catalog Catalog
}

func (t *OrderStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_order_status",
		mcp.WithDescription("Vérifie le statut d'une commande/inscription par numéro de commande ou email."),
		mcp.WithNumber("order_id", mcp.Description("Numéro de commande")),
		mcp.WithString("email", mcp.Description("Email du client (pour recherche)")),
	)
}

func (t *OrderStatusTool) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var args struct {
		OrderID int64  `json:"order_id"`
		Email   string `json:"email"`
	}
	if err := decode(input, &args); err != nil {
		return nil, err
	}
	switch {
	case args.OrderID > 0:
		o, err := t.catalog.GetOrder(ctx, args.OrderID)
		if err != nil {
			return nil, err
		}
		return struct {
			result
			*commerce.OrderStatus
		}{result{true}, o}, nil
	case strings.TrimSpace(args.Email) != "":
		orders, err := t.catalog.FindOrdersByEmail(ctx, strings.TrimSpace(args.Email))
		if err != nil {
			return nil, err
		}
		return struct {
			result
			Orders []commerce.OrderSummary `json:"orders"`
			Total  int                     `json:"total"`
		}{result{true}, orders, len(orders)}, nil
	default:
		return nil, invalidf("Veuillez fournir un numéro de commande ou un email.")
	}
}
