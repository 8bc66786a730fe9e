package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoleMutationRequest struct {
	Principal string `json:"principal"`
}

type RoleMutationResponse struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
	Granted   bool   `json:"granted,omitempty"`
	Revoked   bool   `json:"revoked,omitempty"`
}

type MembersResponse struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

type RolesOfResponse struct {
	Principal string   `json:"principal"`
	Roles     []string `json:"roles"`
}
