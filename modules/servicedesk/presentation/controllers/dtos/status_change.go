package dtos

type StatusChange struct {
	Status string `json:"status"`
}
