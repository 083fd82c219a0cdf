package models

// LocationStatus tells where a record lives.
type LocationStatus string

const (
	LocationLocal  LocationStatus = "local"
	LocationCloud  LocationStatus = "cloud"
	LocationShared LocationStatus = "shared"
)

// LocationStatus reports local when cloud is off, whatever the share fields
// say. A record counts as shared once sharing is enabled or a share name is
// known.
func (r *MedicalRecord) LocationStatus() LocationStatus {
	if !r.Cloud.IsCloudEnabled {
		return LocationLocal
	}
	if r.Cloud.IsSharingEnabled || r.Cloud.CloudShareRecordName != nil {
		return LocationShared
	}
	return LocationCloud
}
