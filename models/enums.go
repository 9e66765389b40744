package models

type VendorType string

const (
	VendorTypeManufacturer    VendorType = "Manufacturer"
	VendorTypeTrader          VendorType = "Trader"
	VendorTypeServiceProvider VendorType = "ServiceProvider"
)

var AllVendorTypes = []VendorType{VendorTypeManufacturer, VendorTypeTrader, VendorTypeServiceProvider}

func (t VendorType) IsValid() bool {
	switch t {
	case VendorTypeManufacturer, VendorTypeTrader, VendorTypeServiceProvider:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

type ItemType string

const (
	ItemTypeRawMaterial  ItemType = "RawMaterial"
	ItemTypeFinishedGood ItemType = "FinishedGood"
	ItemTypeConsumable   ItemType = "Consumable"
	ItemTypeAsset        ItemType = "Asset"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeRawMaterial, ItemTypeFinishedGood, ItemTypeConsumable, ItemTypeAsset:
		return true
	}
	return false
}

type WarehouseType string

const (
	WarehouseTypeMain     WarehouseType = "Main"
	WarehouseTypeRegional WarehouseType = "Regional"
	WarehouseTypeTransit  WarehouseType = "Transit"
)

type WarehouseStatus string

const (
	WarehouseStatusActive      WarehouseStatus = "Active"
	WarehouseStatusInactive    WarehouseStatus = "Inactive"
	WarehouseStatusMaintenance WarehouseStatus = "Maintenance"
)

type TransactionType string

const (
	TransactionTypeGRN        TransactionType = "GRN"
	TransactionTypeIssue      TransactionType = "Issue"
	TransactionTypeReturn     TransactionType = "Return"
	TransactionTypeAdjustment TransactionType = "Adjustment"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeGRN, TransactionTypeIssue, TransactionTypeReturn, TransactionTypeAdjustment:
		return true
	}
	return false
}

// VaultSlot names a single-document slot of a vendor's document vault.
type VaultSlot string

const (
	VaultSlotGstCertificate  VaultSlot = "gstCertificate"
	VaultSlotMsmeCertificate VaultSlot = "msmeCertificate"
	VaultSlotCancelledCheque VaultSlot = "cancelledCheque"
)

func (s VaultSlot) IsValid() bool {
	switch s {
	case VaultSlotGstCertificate, VaultSlotMsmeCertificate, VaultSlotCancelledCheque:
		return true
	}
	return false
}

// collection change actions carried in published events
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// storage keys
const (
	KeyVendors           = "vendors"
	KeyInventoryItems    = "inventory-items"
	KeyWarehouses        = "warehouses"
	KeyStockTransactions = "stock-transactions"
)
