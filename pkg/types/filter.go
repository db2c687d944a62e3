package types

// LookupKind определяет справочник, по которому идёт подбор (typeahead).
type LookupKind string

const (
	LookupBranch  LookupKind = "branch"
	LookupRider   LookupKind = "rider"
	LookupProduct LookupKind = "product"
)

// LookupQuery - параметры запроса подбора по справочнику.
type LookupQuery struct {
	Kind   LookupKind `json:"kind"`
	Search string     `json:"search,omitempty"`
	Area   string     `json:"area,omitempty"`
	Limit  int        `json:"limit"`
}
