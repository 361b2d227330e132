package backend

// Place is one geocoding search result; coordinates arrive as strings
type Place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}
