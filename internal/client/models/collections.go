package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChildKind names a child collection in local storage.
type ChildKind string

const (
	KindBlood           ChildKind = "blood"
	KindDrug            ChildKind = "drug"
	KindVaccination     ChildKind = "vaccination"
	KindAllergy         ChildKind = "allergy"
	KindIllness         ChildKind = "illness"
	KindRisk            ChildKind = "risk"
	KindMedicalHistory  ChildKind = "medical_history"
	KindMedicalDocument ChildKind = "medical_document"
	KindWeight          ChildKind = "weight"
	KindEmergency       ChildKind = "emergency_contact"
	KindHumanDoctor     ChildKind = "human_doctor"
	KindPetYearlyCost   ChildKind = "pet_yearly_cost"
)

// Item is a type-erased child entry: its identity plus its full JSON body.
// Storage and the remote codec both work on Items.
type Item struct {
	Kind ChildKind
	Meta EntryMeta
	Data json.RawMessage
}

// Collection gives uniform access to one of the record's child slices.
type Collection interface {
	Kind() ChildKind
	// Field is the remote document field holding the collection.
	Field() string
	Items(r *MedicalRecord) ([]Item, error)
	SetItems(r *MedicalRecord, items []Item) error
	// EnsureIdentity stamps children that have no uuid yet.
	EnsureIdentity(r *MedicalRecord, now time.Time)
}

type collection[T any, PT interface {
	*T
	Child
}] struct {
	kind  ChildKind
	field string
	slice func(r *MedicalRecord) *[]T
}

func (c collection[T, PT]) Kind() ChildKind { return c.kind }
func (c collection[T, PT]) Field() string   { return c.field }

func (c collection[T, PT]) Items(r *MedicalRecord) ([]Item, error) {
	s := *c.slice(r)
	out := make([]Item, 0, len(s))
	for i := range s {
		child := PT(&s[i])
		data, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("marshal %s entry %s: %w", c.kind, child.Meta().UUID, err)
		}
		out = append(out, Item{Kind: c.kind, Meta: *child.Meta(), Data: data})
	}
	return out, nil
}

func (c collection[T, PT]) SetItems(r *MedicalRecord, items []Item) error {
	if len(items) == 0 {
		*c.slice(r) = nil
		return nil
	}
	s := make([]T, 0, len(items))
	for _, it := range items {
		var v T
		if err := json.Unmarshal(it.Data, &v); err != nil {
			return fmt.Errorf("unmarshal %s entry %s: %w", c.kind, it.Meta.UUID, err)
		}
		*PT(&v).Meta() = it.Meta
		s = append(s, v)
	}
	*c.slice(r) = s
	return nil
}

func (c collection[T, PT]) EnsureIdentity(r *MedicalRecord, now time.Time) {
	s := *c.slice(r)
	for i := range s {
		m := PT(&s[i]).Meta()
		if m.UUID == "" {
			*m = NewEntryMeta(now)
		}
	}
}

// EnsureChildIdentity stamps every child entry that has no uuid yet.
func (r *MedicalRecord) EnsureChildIdentity(now time.Time) {
	for _, c := range Collections {
		c.EnsureIdentity(r, now)
	}
}

// Collections lists every child collection of a MedicalRecord.
var Collections = []Collection{
	collection[BloodEntry, *BloodEntry]{KindBlood, "bloodEntries",
		func(r *MedicalRecord) *[]BloodEntry { return &r.Blood }},
	collection[DrugEntry, *DrugEntry]{KindDrug, "drugEntries",
		func(r *MedicalRecord) *[]DrugEntry { return &r.Drugs }},
	collection[VaccinationEntry, *VaccinationEntry]{KindVaccination, "vaccinationEntries",
		func(r *MedicalRecord) *[]VaccinationEntry { return &r.Vaccinations }},
	collection[AllergyEntry, *AllergyEntry]{KindAllergy, "allergyEntries",
		func(r *MedicalRecord) *[]AllergyEntry { return &r.Allergies }},
	collection[IllnessEntry, *IllnessEntry]{KindIllness, "illnessEntries",
		func(r *MedicalRecord) *[]IllnessEntry { return &r.Illnesses }},
	collection[RiskEntry, *RiskEntry]{KindRisk, "riskEntries",
		func(r *MedicalRecord) *[]RiskEntry { return &r.Risks }},
	collection[MedicalHistoryEntry, *MedicalHistoryEntry]{KindMedicalHistory, "medicalHistoryEntries",
		func(r *MedicalRecord) *[]MedicalHistoryEntry { return &r.MedicalHistory }},
	collection[MedicalDocumentEntry, *MedicalDocumentEntry]{KindMedicalDocument, "medicalDocumentEntries",
		func(r *MedicalRecord) *[]MedicalDocumentEntry { return &r.MedicalDocuments }},
	collection[WeightEntry, *WeightEntry]{KindWeight, "weightEntries",
		func(r *MedicalRecord) *[]WeightEntry { return &r.Weights }},
	collection[EmergencyContact, *EmergencyContact]{KindEmergency, "emergencyContacts",
		func(r *MedicalRecord) *[]EmergencyContact { return &r.EmergencyContacts }},
	collection[HumanDoctorEntry, *HumanDoctorEntry]{KindHumanDoctor, "humanDoctors",
		func(r *MedicalRecord) *[]HumanDoctorEntry { return &r.HumanDoctors }},
	collection[PetYearlyCostEntry, *PetYearlyCostEntry]{KindPetYearlyCost, "petYearlyCosts",
		func(r *MedicalRecord) *[]PetYearlyCostEntry { return &r.PetYearlyCosts }},
}

// CollectionByKind finds the collection for k.
func CollectionByKind(k ChildKind) (Collection, bool) {
	for _, c := range Collections {
		if c.Kind() == k {
			return c, true
		}
	}
	return nil, false
}
