package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/google/uuid"
)

type Bin struct {
	Id            string   `json:"id" validate:"required"`
	BinCode       string   `json:"binCode" validate:"required,max=32"`
	RackNumber    string   `json:"rackNumber"`
	Capacity      int      `json:"capacity" validate:"min=0"`
	Occupied      int      `json:"occupied" validate:"min=0"`
	AssignedItems []string `json:"assignedItems"`
}

type Warehouse struct {
	Id        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required,max=100"`
	Code      string          `json:"code" validate:"required,max=32"`
	Location  string          `json:"location"`
	Manager   string          `json:"manager"`
	Contact   string          `json:"contact" validate:"omitempty,phone10"`
	Capacity  int             `json:"capacity" validate:"gt=0"`
	Occupied  int             `json:"occupied" validate:"min=0"`
	ItemCount int             `json:"itemCount" validate:"min=0"`
	Type      WarehouseType   `json:"type" validate:"required,oneof=Main Regional Transit"`
	Status    WarehouseStatus `json:"status" validate:"required,oneof=Active Inactive Maintenance"`
	Bins      []Bin           `json:"bins" validate:"dive"`
}

func (w Warehouse) GetId() string { return w.Id }

func (w Warehouse) WithId(id string) Warehouse {
	w.Id = id
	return w
}

func (w Warehouse) Normalized() Warehouse {
	w.Id = strings.TrimSpace(w.Id)
	w.Name = strings.TrimSpace(w.Name)
	w.Code = strings.TrimSpace(w.Code)
	w.Location = strings.TrimSpace(w.Location)
	w.Manager = strings.TrimSpace(w.Manager)
	w.Contact = strings.TrimSpace(w.Contact)
	if w.Status == "" {
		w.Status = WarehouseStatusActive
	}
	if len(w.Bins) > 0 {
		bins := make([]Bin, len(w.Bins))
		for i, b := range w.Bins {
			b.BinCode = strings.TrimSpace(b.BinCode)
			b.RackNumber = strings.TrimSpace(b.RackNumber)
			if b.Id == "" {
				b.Id = uuid.NewString()
			}
			bins[i] = b
		}
		w.Bins = bins
	}
	return w
}

// Validate checks the fields; occupancy above capacity is allowed.
func (w Warehouse) Validate() error {
	if err := utils.ValidateStruct(w); err != nil {
		return err
	}
	seen := make(map[string]bool, len(w.Bins))
	for _, b := range w.Bins {
		if seen[b.Id] {
			return utils.NewValidationError("bins", fmt.Sprintf("duplicate bin id %s", b.Id))
		}
		seen[b.Id] = true
	}
	return nil
}

func (w Warehouse) Bin(id string) (Bin, bool) {
	for _, b := range w.Bins {
		if b.Id == id {
			return b, true
		}
	}
	return Bin{}, false
}

// WarehouseStore is the warehouse collection plus bin helpers. Bins belong to exactly one warehouse.
type WarehouseStore struct {
	*Collection[Warehouse]
}

func (s *WarehouseStore) mutate(ctx context.Context, id string, fn func(Warehouse) (Warehouse, error)) (Warehouse, error) {
	w, found, err := s.UpdateWith(ctx, id, fn)
	if err != nil {
		return Warehouse{}, err
	}
	if !found {
		return Warehouse{}, fmt.Errorf("warehouse %s: %w", id, utils.ErrorRecordNotFound)
	}
	return w, nil
}

func (s *WarehouseStore) AddBin(ctx context.Context, warehouseId string, bin Bin) (Warehouse, error) {
	return s.mutate(ctx, warehouseId, func(w Warehouse) (Warehouse, error) {
		if bin.Id != "" {
			if _, ok := w.Bin(bin.Id); ok {
				return w, fmt.Errorf("bin %s: %w", bin.Id, utils.ErrDuplicateId)
			}
		}
		w.Bins = append(append([]Bin(nil), w.Bins...), bin)
		return w, nil
	})
}

// UpdateBin merges patch into the bin; the bin id cannot change.
func (s *WarehouseStore) UpdateBin(ctx context.Context, warehouseId string, binId string, patch map[string]any) (Warehouse, error) {
	if v, ok := patch["id"]; ok {
		if id, _ := v.(string); id != binId {
			return Warehouse{}, fmt.Errorf("bin id: %w", utils.ErrImmutableField)
		}
	}
	return s.mutate(ctx, warehouseId, func(w Warehouse) (Warehouse, error) {
		bins := append([]Bin(nil), w.Bins...)
		for i, b := range bins {
			if b.Id != binId {
				continue
			}
			merged, err := utils.MergePatch(b, patch)
			if err != nil {
				return w, err
			}
			merged.Id = binId
			bins[i] = merged
			w.Bins = bins
			return w, nil
		}
		return w, fmt.Errorf("bin %s: %w", binId, utils.ErrorRecordNotFound)
	})
}

func (s *WarehouseStore) RemoveBin(ctx context.Context, warehouseId string, binId string) (Warehouse, error) {
	return s.mutate(ctx, warehouseId, func(w Warehouse) (Warehouse, error) {
		kept := make([]Bin, 0, len(w.Bins))
		for _, b := range w.Bins {
			if b.Id != binId {
				kept = append(kept, b)
			}
		}
		if len(kept) == len(w.Bins) {
			return w, fmt.Errorf("bin %s: %w", binId, utils.ErrorRecordNotFound)
		}
		w.Bins = kept
		return w, nil
	})
}

// FindByCode resolves a ledger warehouse reference: the code first, then the id.
func (s *WarehouseStore) FindByCode(code string) (Warehouse, bool) {
	code = strings.TrimSpace(code)
	if w, ok := s.Find(func(w Warehouse) bool { return strings.EqualFold(w.Code, code) }); ok {
		return w, true
	}
	return s.Get(code)
}
