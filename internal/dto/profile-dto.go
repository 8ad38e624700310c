package dto

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type UserResponse struct {
	ID          uint     `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	DisplayName string   `json:"display_name"`
	Provider    string   `json:"provider"`
	Roles       []string `json:"roles"`
	CreatedAt   string   `json:"created_at"`
}

type UserListResponse struct {
	Total int64          `json:"total"`
	Users []UserResponse `json:"users"`
}
