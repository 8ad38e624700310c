package dto

type SetRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"` // ["user","admin"]
}

type RoleResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
