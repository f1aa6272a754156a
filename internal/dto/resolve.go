package dto

// ResolveRequest captures an ad hoc traversal for POST /links/resolve.
type ResolveRequest struct {
	Key  string       `json:"key" validate:"required,max=256"`
	Hops []HopRequest `json:"hops" validate:"required,min=1,max=8,dive"`
}

// HopRequest is one join step of an ad hoc traversal.
type HopRequest struct {
	Entity     string `json:"entity" validate:"omitempty,max=64"`
	Collection string `json:"collection" validate:"required"`
	Field      string `json:"field" validate:"required"`
	Source     string `json:"source"`
	Many       bool   `json:"many"`
}

// EmailQuery binds the ?email= lookup of the user link endpoints.
type EmailQuery struct {
	Email string `form:"email" validate:"required,email"`
}
