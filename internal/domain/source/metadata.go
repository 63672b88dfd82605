package source

import (
	"strconv"
	"strings"
	"time"
)

// Metadata is the per-source detail attached to a search result.
// Implementations: ReceiptMetadata, BusinessMetadata, CategoryMetadata, ClaimMetadata.
type Metadata interface {
	SourceType() Type
	sealed()
}

// ReceiptMetadata describes a receipt.
type ReceiptMetadata struct {
	Type          Type      `json:"type"`
	Merchant      string    `json:"merchant"`
	Total         float64   `json:"total"`
	Currency      string    `json:"currency"`
	Date          time.Time `json:"date"`
	Category      string    `json:"category,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
}

// BusinessMetadata describes a business-directory entry.
type BusinessMetadata struct {
	Type     Type     `json:"type"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Address  string   `json:"address,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Website  string   `json:"website,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// CategoryMetadata describes a user-defined category.
type CategoryMetadata struct {
	Type         Type   `json:"type"`
	Name         string `json:"name"`
	Color        string `json:"color,omitempty"`
	ReceiptCount int    `json:"receiptCount"`
}

// ClaimMetadata describes an expense claim.
type ClaimMetadata struct {
	Type     Type    `json:"type"`
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status,omitempty"`
	Priority string  `json:"priority,omitempty"`
}

func (ReceiptMetadata) SourceType() Type  { return Receipt }
func (BusinessMetadata) SourceType() Type { return BusinessDirectory }
func (CategoryMetadata) SourceType() Type { return Category }
func (ClaimMetadata) SourceType() Type    { return Claim }

func (ReceiptMetadata) sealed()  {}
func (BusinessMetadata) sealed() {}
func (CategoryMetadata) sealed() {}
func (ClaimMetadata) sealed()    {}

// MetadataFromFields builds typed metadata from raw index fields.
// Missing or malformed fields fall back to zero values.
func MetadataFromFields(t Type, f map[string]string) Metadata {
	switch t {
	case Receipt:
		return ReceiptMetadata{
			Type:          Receipt,
			Merchant:      f["merchant"],
			Total:         parseFloat(f["amount"]),
			Currency:      f["currency"],
			Date:          ParseUnix(f["date"]),
			Category:      f["category"],
			PaymentMethod: f["payment_method"],
		}
	case BusinessDirectory:
		return BusinessMetadata{
			Type:     BusinessDirectory,
			Name:     f["title"],
			Category: f["category"],
			Address:  f["address"],
			Phone:    f["phone"],
			Website:  f["website"],
			Keywords: splitList(f["keywords"]),
		}
	case Category:
		n, _ := strconv.Atoi(f["receipt_count"])
		return CategoryMetadata{
			Type:         Category,
			Name:         f["title"],
			Color:        f["color"],
			ReceiptCount: n,
		}
	case Claim:
		return ClaimMetadata{
			Type:     Claim,
			Title:    f["title"],
			Amount:   parseFloat(f["amount"]),
			Currency: f["currency"],
			Status:   f["status"],
			Priority: f["priority"],
		}
	default:
		return nil
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseUnix reads a unix-seconds field. Empty or invalid yields the zero time.
func ParseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(v), 0).UTC()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
