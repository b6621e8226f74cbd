package dto

// CreateZoneRequest payload.
type CreateZoneRequest struct {
	Name      string   `json:"name"`
	CenterLat *float64 `json:"center_lat"`
	CenterLon *float64 `json:"center_lon"`
}

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateUnitRequest payload.
type CreateUnitRequest struct {
	Name      string  `json:"name"`
	ProfileID *string `json:"profile_id"`
	ZoneID    *string `json:"zone_id"`
	Active    *bool   `json:"active"`
}

// UpdateUnitRequest payload.
type UpdateUnitRequest struct {
	Name      *string `json:"name"`
	ProfileID *string `json:"profile_id"`
	ZoneID    *string `json:"zone_id"`
	Active    *bool   `json:"active"`
}

// ZoneResponse response.
type ZoneResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CenterLat *float64 `json:"center_lat"`
	CenterLon *float64 `json:"center_lon"`
}

// CategoryResponse response.
type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UnitResponse response.
type UnitResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ProfileID *string `json:"profile_id"`
	ZoneID    *string `json:"zone_id"`
	Active    bool    `json:"active"`
}
