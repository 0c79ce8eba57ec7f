package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Store       string `json:"store"`
	Redis       string `json:"redis,omitempty"`
	Subscribers int    `json:"subscribers"`
	StaleZones  int    `json:"stale_zones"`
}

type TimeResponse struct {
	Now      string `json:"now"`
	Date     string `json:"date"`
	TimeZone string `json:"time_zone"`
	Source   string `json:"source"`
}

type ListResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
