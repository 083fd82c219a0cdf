package common

// AccessTokenHeaderName is the gRPC metadata key that carries the access
// token on outbound requests.
const AccessTokenHeaderName = "access_token"

// RecordTypeMedicalRecord is the remote record type of a mirrored health
// record.
const RecordTypeMedicalRecord = "MedicalRecord"

// DefaultZoneName is the custom zone records are mirrored into. Sharing
// requires a custom zone, so the default zone is never used.
const DefaultZoneName = "MyHealthDataShareZone"
