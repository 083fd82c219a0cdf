package codec

import (
	"strings"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
)

// MigrateLegacyContact turns the old single emergency contact fields into
// the first EmergencyContacts entry. It runs only while the record has no
// contacts, so it fires at most once per record. It reports whether the
// record changed.
func MigrateLegacyContact(r *models.MedicalRecord) bool {
	if len(r.EmergencyContacts) > 0 {
		return false
	}
	name := strings.TrimSpace(r.EmergencyName)
	phone := strings.TrimSpace(r.EmergencyNumber)
	email := strings.TrimSpace(r.EmergencyEmail)
	if name == "" && phone == "" && email == "" {
		return false
	}

	meta := models.NewEntryMeta(r.UpdatedAt)
	r.EmergencyContacts = []models.EmergencyContact{
		models.EmergencyContactFrom(models.ContactInfo{DisplayName: name, Phone: phone, Email: email}, meta),
	}
	return true
}
