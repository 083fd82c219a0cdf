package models

import "context"

// ContactInfo is what a host contact picker hands back.
type ContactInfo struct {
	DisplayName  string
	Organization string
	Phone        string
	Email        string
	Address      string
}

// ContactSource is a host capability that lets the user pick a contact.
// Pick returns nil, nil when the user cancels.
type ContactSource interface {
	Pick(ctx context.Context) (*ContactInfo, error)
}

// CopyVetDetails fills the veterinarian fields from a picked contact. Empty
// contact values leave the existing field alone.
func (r *MedicalRecord) CopyVetDetails(c ContactInfo) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&r.VetClinicName, c.Organization)
	set(&r.VetContactName, c.DisplayName)
	set(&r.VetPhone, c.Phone)
	set(&r.VetEmail, c.Email)
	set(&r.VetAddress, c.Address)
}

// EmergencyContactFrom turns a picked contact into a new child entry.
func EmergencyContactFrom(c ContactInfo, meta EntryMeta) EmergencyContact {
	return EmergencyContact{EntryMeta: meta, Name: c.DisplayName, Phone: c.Phone, Email: c.Email}
}
