package models

// HealthResponse is the static status payload
// swagger:model HealthResponse
type HealthResponse struct {
	// example: OK
	Status string `json:"status"`
	// example: ロマ子あるある挨拶カウンター API is running
	Message string `json:"message"`
}
