package services

import "errors"

var (
	// ErrZoneNotFound is returned for private reads of a zone the caller never
	// saved into.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrConflict means the caller's change tag is older than the stored one.
	ErrConflict = errors.New("record changed on server")
	// ErrUnknownRecordType is returned by production servers for record types
	// the schema does not have. Clients match the message text.
	ErrUnknownRecordType = errors.New("Cannot create new type") //nolint:staticcheck
)
