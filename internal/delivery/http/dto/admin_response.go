package dto

type AffectedResponse struct {
	Affected int64 `json:"affected"`
}

type ReactivateRequest struct {
	Days int `json:"days"`
}
