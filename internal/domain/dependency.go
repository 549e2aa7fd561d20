package domain

// DependencyStatus describes whether a downstream service currently resolves
// to any instance. It is derived from discovery only.
type DependencyStatus struct {
	Service string `json:"service"`
	Healthy bool   `json:"healthy"`
	Details string `json:"details"`
}
