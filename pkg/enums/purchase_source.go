package enums

import "fmt"

// PurchaseSource records which path produced a unified purchase record.
type PurchaseSource string

const (
	PurchaseSourceCheckout  PurchaseSource = "checkout"
	PurchaseSourceWebhook   PurchaseSource = "webhook"
	PurchaseSourceMigration PurchaseSource = "legacy_migration"
)

var validPurchaseSources = []PurchaseSource{
	PurchaseSourceCheckout,
	PurchaseSourceWebhook,
	PurchaseSourceMigration,
}

func (p PurchaseSource) String() string {
	return string(p)
}

func (p PurchaseSource) IsValid() bool {
	for _, candidate := range validPurchaseSources {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePurchaseSource(value string) (PurchaseSource, error) {
	for _, candidate := range validPurchaseSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase source %q", value)
}
