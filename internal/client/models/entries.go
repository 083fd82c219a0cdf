package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryMeta gives a child entry its own identity and merge clock.
type EntryMeta struct {
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEntryMeta stamps a fresh child identity.
func NewEntryMeta(now time.Time) EntryMeta {
	now = now.UTC()
	return EntryMeta{UUID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

func (m *EntryMeta) Meta() *EntryMeta { return m }

// Child is implemented by every child entry through its embedded EntryMeta.
type Child interface {
	Meta() *EntryMeta
}

type BloodEntry struct {
	EntryMeta
	Date    time.Time `json:"date"`
	Name    string    `json:"name"`
	Comment string    `json:"comment"`
}

type DrugEntry struct {
	EntryMeta
	Date          time.Time `json:"date"`
	NameAndDosage string    `json:"nameAndDosage"`
	Comment       string    `json:"comment"`
}

type VaccinationEntry struct {
	EntryMeta
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Information string    `json:"information"`
	Place       string    `json:"place"`
	Comment     string    `json:"comment"`
}

type AllergyEntry struct {
	EntryMeta
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Information string    `json:"information"`
	Comment     string    `json:"comment"`
}

type IllnessEntry struct {
	EntryMeta
	Date                 time.Time `json:"date"`
	Name                 string    `json:"name"`
	InformationOrComment string    `json:"informationOrComment"`
}

type RiskEntry struct {
	EntryMeta
	Date                 time.Time `json:"date"`
	Name                 string    `json:"name"`
	DescriptionOrComment string    `json:"descriptionOrComment"`
}

type MedicalHistoryEntry struct {
	EntryMeta
	Date                 time.Time `json:"date"`
	Name                 string    `json:"name"`
	Contact              string    `json:"contact"`
	InformationOrComment string    `json:"informationOrComment"`
}

type MedicalDocumentEntry struct {
	EntryMeta
	Date time.Time `json:"date"`
	Name string    `json:"name"`
	Note string    `json:"note"`
}

type WeightEntry struct {
	EntryMeta
	Date     time.Time `json:"date"`
	WeightKg float64   `json:"weightKg"`
	Comment  string    `json:"comment"`
}

type EmergencyContact struct {
	EntryMeta
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Note  string `json:"note"`
}

type HumanDoctorEntry struct {
	EntryMeta
	Type    string `json:"type"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

type PetYearlyCostEntry struct {
	EntryMeta
	Year     int     `json:"year"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note"`
}
