package models

import (
	"context"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/sirupsen/logrus"
)

type StoreOptions struct {
	Logger    *logrus.Logger
	Publisher config.EventPublisher
	// UploadMaxBytes limits vendor attachments; <= 0 means DefaultUploadMaxBytes.
	UploadMaxBytes int
	// StrictLedgerStock refuses item patches that set currentStock directly.
	StrictLedgerStock bool
}

// Stores is the application's entity state. It is created once by the caller and passed
// to whatever needs it.
type Stores struct {
	KV         storage.KV
	Vendors    *VendorStore
	Items      *ItemStore
	Warehouses *WarehouseStore
	Ledger     *Ledger
	Logger     *logrus.Logger
}

// NewStores loads every collection from kv.
func NewStores(ctx context.Context, kv storage.KV, opts StoreOptions) (*Stores, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	uploadMax := opts.UploadMaxBytes
	if uploadMax <= 0 {
		uploadMax = DefaultUploadMaxBytes
	}

	vendors, err := OpenCollection(ctx, kv, KeyVendors, CollectionOptions[Vendor]{
		Logger:        logger,
		Publisher:     opts.Publisher,
		ReferenceType: "vendor",
		Prepare:       prepareVendor,
	})
	if err != nil {
		return nil, err
	}

	itemOpts := CollectionOptions[InventoryItem]{
		Logger:        logger,
		Publisher:     opts.Publisher,
		ReferenceType: "inventory_item",
		Prepare:       prepareItem,
	}
	if opts.StrictLedgerStock {
		itemOpts.GuardPatch = strictStockGuard
	}
	items, err := OpenCollection(ctx, kv, KeyInventoryItems, itemOpts)
	if err != nil {
		vendors.Close()
		return nil, err
	}

	warehouses, err := OpenCollection(ctx, kv, KeyWarehouses, CollectionOptions[Warehouse]{
		Logger:        logger,
		Publisher:     opts.Publisher,
		ReferenceType: "warehouse",
	})
	if err != nil {
		vendors.Close()
		items.Close()
		return nil, err
	}

	txs, err := OpenCollection(ctx, kv, KeyStockTransactions, CollectionOptions[StockTransaction]{
		Logger:        logger,
		Publisher:     opts.Publisher,
		ReferenceType: "stock_transaction",
	})
	if err != nil {
		vendors.Close()
		items.Close()
		warehouses.Close()
		return nil, err
	}

	itemStore := &ItemStore{Collection: items}
	ledger := &Ledger{Collection: txs, items: itemStore, logger: logger}
	itemStore.ledger = ledger
	return &Stores{
		KV:         kv,
		Vendors:    &VendorStore{Collection: vendors, uploadMaxBytes: uploadMax},
		Items:      itemStore,
		Warehouses: &WarehouseStore{Collection: warehouses},
		Ledger:     ledger,
		Logger:     logger,
	}, nil
}

// Close detaches the collections from the backing store. The store itself is left open.
func (s *Stores) Close() {
	s.Vendors.Close()
	s.Items.Close()
	s.Warehouses.Close()
	s.Ledger.Close()
}
