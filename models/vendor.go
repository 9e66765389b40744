package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
)

type VendorRatings struct {
	DeliveryTimeliness float64 `json:"deliveryTimeliness" validate:"min=0,max=5"`
	Quality            float64 `json:"quality" validate:"min=0,max=5"`
	PricingConsistency float64 `json:"pricingConsistency" validate:"min=0,max=5"`
	Communication      float64 `json:"communication" validate:"min=0,max=5"`
}

// Scores lists the sub-scores in a fixed order.
func (r VendorRatings) Scores() []float64 {
	return []float64{r.DeliveryTimeliness, r.Quality, r.PricingConsistency, r.Communication}
}

type VendorNote struct {
	Text      string    `json:"text" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

// DocumentVault holds at most one document per single slot plus any number of ISO certificates.
type DocumentVault struct {
	GstCertificate  *Attachment  `json:"gstCertificate,omitempty"`
	MsmeCertificate *Attachment  `json:"msmeCertificate,omitempty"`
	CancelledCheque *Attachment  `json:"cancelledCheque,omitempty"`
	IsoCertificates []Attachment `json:"isoCertificates,omitempty"`
}

// Slot returns the document in a single slot.
func (d DocumentVault) Slot(slot VaultSlot) *Attachment {
	switch slot {
	case VaultSlotGstCertificate:
		return d.GstCertificate
	case VaultSlotMsmeCertificate:
		return d.MsmeCertificate
	case VaultSlotCancelledCheque:
		return d.CancelledCheque
	}
	return nil
}

func (d DocumentVault) withSlot(slot VaultSlot, a *Attachment) DocumentVault {
	switch slot {
	case VaultSlotGstCertificate:
		d.GstCertificate = a
	case VaultSlotMsmeCertificate:
		d.MsmeCertificate = a
	case VaultSlotCancelledCheque:
		d.CancelledCheque = a
	}
	return d
}

type Vendor struct {
	Id                  string        `json:"id" validate:"required"`
	Name                string        `json:"name" validate:"required,max=200"`
	VendorType          VendorType    `json:"vendorType" validate:"required,oneof=Manufacturer Trader ServiceProvider"`
	ContactPerson       string        `json:"contactPerson" validate:"required,max=100"`
	Phone               string        `json:"phone" validate:"required,phone10"`
	Email               string        `json:"email" validate:"omitempty,email"`
	Address             string        `json:"address"`
	Website             string        `json:"website,omitempty" validate:"omitempty,url"`
	GstNumber           string        `json:"gstNumber" validate:"required,gstin"`
	PanNumber           string        `json:"panNumber" validate:"omitempty,pan"`
	MsmeNumber          string        `json:"msmeNumber,omitempty"`
	UdyamNumber         string        `json:"udyamNumber,omitempty"`
	BankName            string        `json:"bankName"`
	BranchName          string        `json:"branchName"`
	AccountNumber       string        `json:"accountNumber" validate:"omitempty,accountno"`
	IfscCode            string        `json:"ifscCode" validate:"omitempty,ifsc"`
	Rating              int           `json:"rating" validate:"min=1,max=5"`
	Ratings             VendorRatings `json:"ratings"`
	Status              Status        `json:"status" validate:"required,oneof=Active Inactive"`
	ProductCategories   []string      `json:"productCategories" validate:"unique"`
	Notes               []VendorNote  `json:"notes" validate:"dive"`
	AdditionalDocuments []Attachment  `json:"additionalDocuments"`
	DocumentVault       DocumentVault `json:"documentVault"`
	CreatedAt           time.Time     `json:"createdAt"`
}

func (v Vendor) GetId() string { return v.Id }

func (v Vendor) WithId(id string) Vendor {
	v.Id = id
	return v
}

func (v Vendor) Normalized() Vendor {
	v.Id = strings.TrimSpace(v.Id)
	v.Name = strings.TrimSpace(v.Name)
	v.ContactPerson = strings.TrimSpace(v.ContactPerson)
	v.Phone = strings.TrimSpace(v.Phone)
	v.Email = strings.TrimSpace(v.Email)
	v.Address = strings.TrimSpace(v.Address)
	v.Website = strings.TrimSpace(v.Website)
	v.GstNumber = strings.TrimSpace(v.GstNumber)
	v.PanNumber = strings.TrimSpace(v.PanNumber)
	v.MsmeNumber = strings.TrimSpace(v.MsmeNumber)
	v.UdyamNumber = strings.TrimSpace(v.UdyamNumber)
	v.BankName = strings.TrimSpace(v.BankName)
	v.BranchName = strings.TrimSpace(v.BranchName)
	v.AccountNumber = strings.TrimSpace(v.AccountNumber)
	v.IfscCode = strings.TrimSpace(v.IfscCode)
	if len(v.ProductCategories) > 0 {
		categories := make([]string, 0, len(v.ProductCategories))
		for _, c := range v.ProductCategories {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
		// one spelling per category, whatever the case
		v.ProductCategories = utils.UniqueSliceBy(categories, strings.ToLower)
	}
	return v
}

func (v Vendor) Validate() error {
	return utils.ValidateStruct(v)
}

// QuickAddVendor is the minimal vendor form.
type QuickAddVendor struct {
	Name          string `json:"name"`
	GstNumber     string `json:"gstNumber"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	ContactPerson string `json:"contactPerson"`
}

// VendorStore is the vendor collection plus the helpers that mutate parts of a vendor.
// Every helper goes through UpdateWith, so it is validated and persisted like any update.
type VendorStore struct {
	*Collection[Vendor]
	uploadMaxBytes int
}

func prepareVendor(v Vendor) Vendor {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	return v
}

// QuickAdd admits a vendor from the minimal form with status Active, rating 3, type Manufacturer.
func (s *VendorStore) QuickAdd(ctx context.Context, input QuickAddVendor) (Vendor, error) {
	return s.Add(ctx, Vendor{
		Name:          input.Name,
		GstNumber:     input.GstNumber,
		Email:         input.Email,
		Phone:         input.Phone,
		ContactPerson: input.ContactPerson,
		VendorType:    VendorTypeManufacturer,
		Status:        StatusActive,
		Rating:        3,
	})
}

func (s *VendorStore) mutate(ctx context.Context, id string, fn func(Vendor) (Vendor, error)) (Vendor, error) {
	v, found, err := s.UpdateWith(ctx, id, fn)
	if err != nil {
		return Vendor{}, err
	}
	if !found {
		return Vendor{}, fmt.Errorf("vendor %s: %w", id, utils.ErrorRecordNotFound)
	}
	return v, nil
}

// AddNote appends a note authored by the context's user (System when unknown).
func (s *VendorStore) AddNote(ctx context.Context, id string, text string) (Vendor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Vendor{}, utils.NewValidationError("text", "text is required")
	}
	author, ok := utils.GetUserNameFromContext(ctx)
	if !ok || strings.TrimSpace(author) == "" {
		author = "System"
	}
	note := VendorNote{Text: text, Timestamp: time.Now().UTC(), Author: author}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.Notes = append(append([]VendorNote(nil), v.Notes...), note)
		return v, nil
	})
}

func (s *VendorStore) AddProductCategory(ctx context.Context, id string, category string) (Vendor, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Vendor{}, utils.NewValidationError("productCategories", "category is required")
	}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		for _, c := range v.ProductCategories {
			if strings.EqualFold(c, category) {
				return v, fmt.Errorf("%q: %w", category, utils.ErrDuplicateCategory)
			}
		}
		v.ProductCategories = append(append([]string(nil), v.ProductCategories...), category)
		return v, nil
	})
}

func (s *VendorStore) RemoveProductCategory(ctx context.Context, id string, category string) (Vendor, error) {
	category = strings.TrimSpace(category)
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		kept := make([]string, 0, len(v.ProductCategories))
		for _, c := range v.ProductCategories {
			if c != category {
				kept = append(kept, c)
			}
		}
		v.ProductCategories = kept
		return v, nil
	})
}

func (s *VendorStore) SetRatings(ctx context.Context, id string, ratings VendorRatings) (Vendor, error) {
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.Ratings = ratings
		return v, nil
	})
}

func (s *VendorStore) SetStatus(ctx context.Context, id string, status Status) (Vendor, error) {
	if !status.IsValid() {
		return Vendor{}, utils.NewValidationError("status", "must be one of: Active, Inactive")
	}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.Status = status
		return v, nil
	})
}

func slotPolicy(slot VaultSlot) UploadPolicy {
	if slot == VaultSlotCancelledCheque {
		return ChequeUploadPolicy
	}
	return CertificateUploadPolicy
}

// UploadVaultDocument stores content in slot, replacing whatever the slot held.
func (s *VendorStore) UploadVaultDocument(ctx context.Context, id string, slot VaultSlot, name string, content []byte) (Vendor, error) {
	if !slot.IsValid() {
		return Vendor{}, utils.NewValidationError("slot", "unknown document vault slot")
	}
	a, err := NewAttachment(name, content, slotPolicy(slot).WithMaxBytes(s.uploadMaxBytes))
	if err != nil {
		return Vendor{}, err
	}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.DocumentVault = v.DocumentVault.withSlot(slot, &a)
		return v, nil
	})
}

// ClearVaultDocument empties slot.
func (s *VendorStore) ClearVaultDocument(ctx context.Context, id string, slot VaultSlot) (Vendor, error) {
	if !slot.IsValid() {
		return Vendor{}, utils.NewValidationError("slot", "unknown document vault slot")
	}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.DocumentVault = v.DocumentVault.withSlot(slot, nil)
		return v, nil
	})
}

func (s *VendorStore) AddIsoCertificate(ctx context.Context, id string, name string, content []byte) (Vendor, error) {
	a, err := NewAttachment(name, content, CertificateUploadPolicy.WithMaxBytes(s.uploadMaxBytes))
	if err != nil {
		return Vendor{}, err
	}
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.DocumentVault.IsoCertificates = append(append([]Attachment(nil), v.DocumentVault.IsoCertificates...), a)
		return v, nil
	})
}

func (s *VendorStore) AddAttachment(ctx context.Context, id string, name string, content []byte) (Vendor, Attachment, error) {
	a, err := NewAttachment(name, content, DocumentUploadPolicy.WithMaxBytes(s.uploadMaxBytes))
	if err != nil {
		return Vendor{}, Attachment{}, err
	}
	v, err := s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		v.AdditionalDocuments = append(append([]Attachment(nil), v.AdditionalDocuments...), a)
		return v, nil
	})
	if err != nil {
		return Vendor{}, Attachment{}, err
	}
	return v, a, nil
}

func (s *VendorStore) RemoveAttachment(ctx context.Context, id string, attachmentId string) (Vendor, error) {
	return s.mutate(ctx, id, func(v Vendor) (Vendor, error) {
		kept := make([]Attachment, 0, len(v.AdditionalDocuments))
		for _, a := range v.AdditionalDocuments {
			if a.Id != attachmentId {
				kept = append(kept, a)
			}
		}
		if len(kept) == len(v.AdditionalDocuments) {
			return v, fmt.Errorf("attachment %s: %w", attachmentId, utils.ErrorRecordNotFound)
		}
		v.AdditionalDocuments = kept
		return v, nil
	})
}

// ActiveVendors lists the vendors with status Active, in insertion order.
func (s *VendorStore) ActiveVendors() []Vendor {
	return FilterActiveVendors(s.List())
}

func FilterActiveVendors(vendors []Vendor) []Vendor {
	var active []Vendor
	for _, v := range vendors {
		if v.Status == StatusActive {
			active = append(active, v)
		}
	}
	return active
}

// FindByName looks a vendor up by its exact (case-insensitive) name.
func (s *VendorStore) FindByName(name string) (Vendor, bool) {
	name = strings.TrimSpace(name)
	return s.Find(func(v Vendor) bool { return strings.EqualFold(v.Name, name) })
}

// IsNotFound reports whether err means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, utils.ErrorRecordNotFound)
}
