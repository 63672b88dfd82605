package source

// Index field names shared by every source index. The indexing pipeline
// writes records as hashes with these fields.
const (
	FieldTenant    = "tenant_id"
	FieldTitle     = "title"
	FieldContent   = "__content"
	FieldVector    = "__vector"
	FieldDate      = "date"
	FieldCreatedAt = "created_at"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldCategory  = "category"
)

// ExtraFields returns the source-specific fields read back into metadata.
func (t Type) ExtraFields() []string {
	switch t {
	case Receipt:
		return []string{"merchant", FieldAmount, FieldCurrency, FieldCategory, "payment_method"}
	case BusinessDirectory:
		return []string{FieldCategory, "address", "phone", "website", "keywords"}
	case Category:
		return []string{"color", "receipt_count"}
	case Claim:
		return []string{FieldAmount, FieldCurrency, "status", "priority"}
	default:
		return nil
	}
}

// IndexName returns the FT index name of this source under prefix.
func (t Type) IndexName(prefix string) string {
	return prefix + "idx:" + string(t)
}

// KeyPrefix returns the hash key prefix of this source's records under prefix.
func (t Type) KeyPrefix(prefix string) string {
	return prefix + string(t) + ":"
}
