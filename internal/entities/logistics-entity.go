package entities

import "github.com/aarondl/null/v8"

type LogisticsAssignment struct {
	ProviderID   uint64      `json:"provider_id"`
	ProviderName string      `json:"provider_name"`
	RiderID      *uint64     `json:"rider_id"`
	RiderName    null.String `json:"rider_name"`
	CoveredArea  string      `json:"covered_area"`
}
