package dto

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type LoginResponse struct {
	TokenResponse
	DeviceKey     string `json:"deviceKey"`
	DeviceLabel   string `json:"deviceLabel"`
	DeviceCreated bool   `json:"deviceCreated"`
	Redirect      string `json:"redirect"`
}

// LoginStatusResponse answers GET /accounts/login for an already signed-in caller.
type LoginStatusResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	Redirect string `json:"redirect,omitempty"`
}
