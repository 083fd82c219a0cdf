// Package models defines the local health record and its child entries.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxHumanDoctors caps the doctors list of a human record.
const MaxHumanDoctors = 5

var (
	ErrTooManyDoctors = fmt.Errorf("a record holds at most %d doctors", MaxHumanDoctors)
	ErrMissingUUID    = errors.New("record uuid is empty")
)

// Profile holds every scalar field that is mirrored to the cloud. The json
// names are the remote document field names.
type Profile struct {
	IsPet bool `json:"isPet"`

	// Human.
	PersonalFamilyName            string     `json:"personalFamilyName"`
	PersonalGivenName             string     `json:"personalGivenName"`
	PersonalNickName              string     `json:"personalNickName"`
	PersonalGender                string     `json:"personalGender"`
	PersonalBirthdate             *time.Time `json:"personalBirthdate,omitempty"`
	PersonalSocialSecurityNumber  string     `json:"personalSocialSecurityNumber"`
	PersonalAddress               string     `json:"personalAddress"`
	PersonalHealthInsurance       string     `json:"personalHealthInsurance"`
	PersonalHealthInsuranceNumber string     `json:"personalHealthInsuranceNumber"`
	PersonalEmployer              string     `json:"personalEmployer"`

	// Pet.
	PersonalName     string `json:"personalName"`
	PersonalAnimalID string `json:"personalAnimalID"`
	OwnerName        string `json:"ownerName"`
	OwnerPhone       string `json:"ownerPhone"`
	OwnerEmail       string `json:"ownerEmail"`

	// Veterinarian.
	VetClinicName  string `json:"vetClinicName"`
	VetContactName string `json:"vetContactName"`
	VetPhone       string `json:"vetPhone"`
	VetEmail       string `json:"vetEmail"`
	VetAddress     string `json:"vetAddress"`
	VetNote        string `json:"vetNote"`

	// Legacy single emergency contact, superseded by EmergencyContacts.
	EmergencyName   string `json:"emergencyName"`
	EmergencyNumber string `json:"emergencyNumber"`
	EmergencyEmail  string `json:"emergencyEmail"`
}

// CloudState is local bookkeeping about the record's remote mirror. It is
// never part of the remote payload.
type CloudState struct {
	IsCloudEnabled       bool
	CloudRecordName      *string
	CloudShareRecordName *string
	IsSharingEnabled     bool
	ParticipantsSummary  string
}

// MedicalRecord is one human or pet health profile with its child entries.
type MedicalRecord struct {
	UUID      string
	CreatedAt time.Time
	UpdatedAt time.Time

	Profile
	Cloud CloudState

	Blood             []BloodEntry
	Drugs             []DrugEntry
	Vaccinations      []VaccinationEntry
	Allergies         []AllergyEntry
	Illnesses         []IllnessEntry
	Risks             []RiskEntry
	MedicalHistory    []MedicalHistoryEntry
	MedicalDocuments  []MedicalDocumentEntry
	Weights           []WeightEntry
	EmergencyContacts []EmergencyContact
	HumanDoctors      []HumanDoctorEntry
	PetYearlyCosts    []PetYearlyCostEntry
}

// NewMedicalRecord returns a local-only record with a fresh uuid.
func NewMedicalRecord(now time.Time, isPet bool) *MedicalRecord {
	now = now.UTC()
	return &MedicalRecord{
		UUID:      uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Profile:   Profile{IsPet: isPet},
	}
}

// Touch advances UpdatedAt to now. The clock never moves backwards: when now
// is not after the current value, UpdatedAt moves forward by one nanosecond.
func (r *MedicalRecord) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(r.UpdatedAt) {
		now = r.UpdatedAt.Add(time.Nanosecond)
	}
	r.UpdatedAt = now
}

// DisplayName is the label shown in record lists.
func (r *MedicalRecord) DisplayName() string {
	if r.IsPet {
		if name := strings.TrimSpace(r.PersonalName); name != "" {
			return name
		}
		return "Pet"
	}
	if nick := strings.TrimSpace(r.PersonalNickName); nick != "" {
		return nick
	}
	full := strings.TrimSpace(strings.TrimSpace(r.PersonalGivenName) + " " + strings.TrimSpace(r.PersonalFamilyName))
	if full != "" {
		return full
	}
	return "Person"
}

// Validate checks record-level constraints before a local save.
func (r *MedicalRecord) Validate() error {
	if r.UUID == "" {
		return ErrMissingUUID
	}
	if len(r.HumanDoctors) > MaxHumanDoctors {
		return ErrTooManyDoctors
	}
	return nil
}

// AddDoctor appends d, respecting MaxHumanDoctors.
func (r *MedicalRecord) AddDoctor(d HumanDoctorEntry) error {
	if len(r.HumanDoctors) >= MaxHumanDoctors {
		return ErrTooManyDoctors
	}
	r.HumanDoctors = append(r.HumanDoctors, d)
	return nil
}
