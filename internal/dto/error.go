package dto

type ErrorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
	ShowAdminLink bool   `json:"showAdminLink,omitempty"`
}
