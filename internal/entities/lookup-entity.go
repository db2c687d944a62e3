package entities

// Строки справочников для typeahead-подбора.

type Branch struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	CoveredArea string `json:"covered_area"`
	Address     string `json:"address"`
}

type Rider struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	ProviderID  uint64 `json:"provider_id"`
}

type Product struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	InStock   bool   `json:"in_stock"`
}
