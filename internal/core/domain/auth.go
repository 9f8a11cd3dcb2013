package domain

// LoginRequest is the signed challenge sent to the backend.
type LoginRequest struct {
	WalletAddress string `json:"wallet_address"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

// LoginResponse is the backend's answer to a successful login.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        UserRecord `json:"user"`
}
