package commerce

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAgeMin     = 8
	defaultAgeMax     = 17
	defaultSpotsTotal = 60
)

type metaEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type wooProduct struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Slug             string      `json:"slug"`
	Price            string      `json:"price"`
	RegularPrice     string      `json:"regular_price"`
	SalePrice        string      `json:"sale_price"`
	ShortDescription string      `json:"short_description"`
	Permalink        string      `json:"permalink"`
	StockQuantity    *int        `json:"stock_quantity"`
	StockStatus      string      `json:"stock_status"`
	Images           []wooImage  `json:"images"`
	MetaData         []metaEntry `json:"meta_data"`
}

type wooImage struct {
	Src string `json:"src"`
}

func (p *wooProduct) meta(key string) string {
	for _, m := range p.MetaData {
		if m.Key != key {
			continue
		}
		switch v := m.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (p *wooProduct) metaInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(p.meta(key)))
	if err != nil || n == 0 {
		return def
	}
	return n
}

// isCamp tells camps apart from merchandise: camps carry date-range meta.
func (p *wooProduct) isCamp() bool {
	for _, m := range p.MetaData {
		if m.Key == "camp_start_date" || m.Key == "camp_end_date" {
			return true
		}
	}
	return false
}

func (p *wooProduct) image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// Offering is a purchasable camp week.
type Offering struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Price           string `json:"price"`
	RegularPrice    string `json:"regular_price"`
	Description     string `json:"description"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	AgeMin          int    `json:"age_min"`
	AgeMax          int    `json:"age_max"`
	SpotsTotal      int    `json:"spots_total"`
	SpotsRemaining  int    `json:"spots_remaining"`
	CampHours       string `json:"camp_hours"`
	DaycareIncluded bool   `json:"daycare_included"`
	DaycareHours    string `json:"daycare_hours"`
	Image           string `json:"image,omitempty"`
	Permalink       string `json:"permalink"`
	InStock         bool   `json:"in_stock"`
}

func toOffering(p *wooProduct) Offering {
	total := p.metaInt("spots_total", defaultSpotsTotal)
	remaining := total
	if p.StockQuantity != nil {
		remaining = *p.StockQuantity
	}
	hours := p.meta("camp_hours")
	if hours == "" {
		hours = "9h00-16h00"
	}
	daycare := p.meta("daycare_hours")
	if daycare == "" {
		daycare = "8h00-9h00 / 16h00-17h00"
	}
	return Offering{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		Price:           p.Price,
		RegularPrice:    p.RegularPrice,
		Description:     stripTags(p.ShortDescription),
		StartDate:       p.meta("camp_start_date"),
		EndDate:         p.meta("camp_end_date"),
		AgeMin:          p.metaInt("age_min", defaultAgeMin),
		AgeMax:          p.metaInt("age_max", defaultAgeMax),
		SpotsTotal:      total,
		SpotsRemaining:  remaining,
		CampHours:       hours,
		DaycareIncluded: p.meta("daycare_included") == "yes",
		DaycareHours:    daycare,
		Image:           p.image(),
		Permalink:       p.Permalink,
		InStock:         p.StockStatus == "instock",
	}
}

// Month returns the calendar month of the start date, or 0 if unparseable.
func (o Offering) Month() int {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(o.StartDate)); err == nil {
			return int(t.Month())
		}
	}
	return 0
}

// OfferingFilter narrows ListOfferings. Zero fields are ignored.
type OfferingFilter struct {
	Age   int
	Month int
}

// ListOfferings fetches one catalog page of published camps and filters it by
// age and month locally.
func (c *Client) ListOfferings(ctx context.Context, f OfferingFilter) ([]Offering, error) {
	q := url.Values{}
	q.Set("per_page", "50")
	q.Set("status", "publish")
	q.Set("search", "Camp")
	q.Set("orderby", "date")
	q.Set("order", "asc")

	var products []wooProduct
	if err := c.do(ctx, "GET", "products", q, nil, &products); err != nil {
		return nil, err
	}

	out := make([]Offering, 0, len(products))
	for i := range products {
		if !products[i].isCamp() {
			continue
		}
		o := toOffering(&products[i])
		if f.Age > 0 && (f.Age < o.AgeMin || f.Age > o.AgeMax) {
			continue
		}
		if f.Month > 0 && o.Month() != f.Month {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Availability is the live seat count of one camp.
type Availability struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	SpotsTotal     int    `json:"spots_total"`
	SpotsRemaining int    `json:"spots_remaining"`
	IsAvailable    bool   `json:"is_available"`
	Price          string `json:"price"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// CheckAvailability re-fetches the product and reports its remaining seats.
func (c *Client) CheckAvailability(ctx context.Context, productID int64) (*Availability, error) {
	var p wooProduct
	if err := c.do(ctx, "GET", fmt.Sprintf("products/%d", productID), nil, nil, &p); err != nil {
		return nil, err
	}
	o := toOffering(&p)
	return &Availability{
		ProductID:      productID,
		Name:           o.Name,
		SpotsTotal:     o.SpotsTotal,
		SpotsRemaining: o.SpotsRemaining,
		IsAvailable:    o.SpotsRemaining > 0,
		Price:          o.Price,
		StartDate:      o.StartDate,
		EndDate:        o.EndDate,
	}, nil
}

// Product is a merchandise item.
type Product struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
	Description  string `json:"description"`
	InStock      bool   `json:"in_stock"`
	Image        string `json:"image,omitempty"`
	Permalink    string `json:"permalink"`
}

// ListMerchandise returns published products that are not camps.
func (c *Client) ListMerchandise(ctx context.Context) ([]Product, error) {
	q := url.Values{}
	q.Set("per_page", "50")
	q.Set("status", "publish")

	var products []wooProduct
	if err := c.do(ctx, "GET", "products", q, nil, &products); err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(products))
	for i := range products {
		p := &products[i]
		if p.isCamp() {
			continue
		}
		out = append(out, Product{
			ID:           p.ID,
			Name:         p.Name,
			Price:        p.Price,
			RegularPrice: p.RegularPrice,
			SalePrice:    p.SalePrice,
			Description:  stripTags(p.ShortDescription),
			InStock:      p.StockStatus == "instock",
			Image:        p.image(),
			Permalink:    p.Permalink,
		})
	}
	return out, nil
}
