package dto

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
