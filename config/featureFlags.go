package config

import (
	"os"
	"strings"
)

// StrictLedgerStock makes the stock ledger the only writer of an item's current stock:
// item patches that touch currentStock are rejected and must go through a stock transaction.
//
// Set via env:
// - STRICT_LEDGER_STOCK=true
func StrictLedgerStock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_LEDGER_STOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
