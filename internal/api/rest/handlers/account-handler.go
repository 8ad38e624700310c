package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/inkpress/account_service/internal/api/rest/middleware"
	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/dto"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/helper/utils"
	"github.com/inkpress/account_service/internal/services"
)

type AccountHandler struct {
	svc  services.AccountService
	auth helper.Auth
}

func NewAccountHandler(svc services.AccountService, auth helper.Auth) *AccountHandler {
	return &AccountHandler{svc: svc, auth: auth}
}

func (h *AccountHandler) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", h.Signup)
	auth.Post("/signin", h.Signin)
	auth.Post("/signout", h.Signout)
	auth.Post("/forgot", h.ForgotPassword)
	auth.Get("/reset/:token", h.ValidateResetToken)
	auth.Post("/reset/:token", h.ResetPassword)

	// Profile
	users := api.Group("/users", middleware.AuthMiddleware(h.auth, h.svc))
	users.Get("/me", h.Me)
	users.Put("/me", h.UpdateProfile)
	users.Post("/me/password", h.ChangePassword)

	// Admin
	admin := api.Group("/admin/users",
		middleware.AuthMiddleware(h.auth, h.svc),
		middleware.RequireRole(domain.RoleAdmin),
	)
	admin.Get("/", h.ListUsers)
	admin.Get("/:userID", h.GetUser)
	admin.Put("/:userID", h.UpdateUser)
	admin.Delete("/:userID", h.DeleteUser)
	admin.Put("/:userID/roles", h.SetRoles)

	adminRoles := api.Group("/admin/roles",
		middleware.AuthMiddleware(h.auth, h.svc),
		middleware.RequireRole(domain.RoleAdmin),
	)
	adminRoles.Get("/", h.ListRoles)
}

func (h *AccountHandler) Signup(ctx *fiber.Ctx) error {
	var requestBody dto.SignupRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	user, roles, err := h.svc.SignUp(requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}

	token, err := h.auth.GenerateToken(user.ID, user.Username, roles)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "could not generate token")
	}
	setSessionCookie(ctx, token)

	return utils.ResponseSuccess(ctx, fiber.StatusCreated, dto.SigninResponse{
		Token: token,
		User:  userResponse(user, roles),
	})
}

func (h *AccountHandler) Signin(ctx *fiber.Ctx) error {
	var requestBody dto.SigninRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "username and password are required")
	}

	user, roles, err := h.svc.SignIn(requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}

	token, err := h.auth.GenerateToken(user.ID, user.Username, roles)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "could not generate token")
	}
	setSessionCookie(ctx, token)

	return utils.ResponseSuccess(ctx, fiber.StatusOK, dto.SigninResponse{
		Token: token,
		User:  userResponse(user, roles),
	})
}

func (h *AccountHandler) Signout(ctx *fiber.Ctx) error {
	ctx.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return utils.ResponseSuccess(ctx, fiber.StatusOK, "signed out")
}

func (h *AccountHandler) ForgotPassword(ctx *fiber.Ctx) error {
	var requestBody dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide a valid username")
	}

	if err := h.svc.ForgotPassword(requestBody.Username); err != nil {
		return respondServiceError(ctx, err)
	}

	// identical response whether or not the account exists
	return utils.ResponseSuccess(ctx, fiber.StatusOK,
		"If that account exists, an email has been sent with further instructions")
}

func (h *AccountHandler) ValidateResetToken(ctx *fiber.Ctx) error {
	if err := h.svc.ValidateResetToken(ctx.Params("token")); err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, "token is valid")
}

func (h *AccountHandler) ResetPassword(ctx *fiber.Ctx) error {
	var requestBody struct {
		NewPassword string `json:"new_password"`
	}
	if err := ctx.BodyParser(&requestBody); err != nil || requestBody.NewPassword == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid input")
	}

	err := h.svc.ResetPassword(dto.ResetPasswordRequest{
		Token:       ctx.Params("token"),
		NewPassword: requestBody.NewPassword,
	})
	if err != nil {
		return respondServiceError(ctx, err)
	}

	return utils.ResponseSuccess(ctx, fiber.StatusOK, "Password reset successfully")
}

func (h *AccountHandler) Me(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	user, roles, err := h.svc.GetProfile(principal.UserID)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, userResponse(user, roles))
}

func (h *AccountHandler) UpdateProfile(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	var requestBody dto.UpdateProfileRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	user, err := h.svc.UpdateProfile(principal.UserID, requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, userResponse(user, principal.Roles))
}

func (h *AccountHandler) ChangePassword(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	var requestBody dto.ChangePasswordRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	if err := h.svc.ChangePassword(principal.UserID, requestBody); err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, "Password changed successfully")
}

// ADMIN

func (h *AccountHandler) ListRoles(ctx *fiber.Ctx) error {
	roles, err := h.svc.ListRoles()
	if err != nil {
		return respondServiceError(ctx, err)
	}

	resp := make([]dto.RoleResponse, 0, len(roles))
	for _, r := range roles {
		resp = append(resp, dto.RoleResponse{ID: r.ID, Name: r.Name})
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *AccountHandler) ListUsers(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))
	search := ctx.Query("search")

	users, total, err := h.svc.ListUsers(search, limit, offset)
	if err != nil {
		return respondServiceError(ctx, err)
	}

	resp := dto.UserListResponse{Total: total, Users: make([]dto.UserResponse, 0, len(users))}
	for i := range users {
		roles, err := h.svc.RolesOf(users[i].ID)
		if err != nil {
			return respondServiceError(ctx, err)
		}
		resp.Users = append(resp.Users, userResponse(&users[i], roles))
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *AccountHandler) GetUser(ctx *fiber.Ctx) error {
	userID, err := paramUint(ctx, "userID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid user id")
	}

	user, roles, err := h.svc.GetUser(userID)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, userResponse(user, roles))
}

func (h *AccountHandler) UpdateUser(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := paramUint(ctx, "userID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid user id")
	}

	var requestBody dto.UpdateProfileRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	user, err := h.svc.UpdateUser(principal.UserID, userID, requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}

	roles, err := h.svc.RolesOf(userID)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, userResponse(user, roles))
}

func (h *AccountHandler) DeleteUser(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := paramUint(ctx, "userID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.svc.DeleteUser(principal.UserID, userID); err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, "User deleted")
}

func (h *AccountHandler) SetRoles(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := paramUint(ctx, "userID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid user id")
	}

	var requestBody dto.SetRolesRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	if err := h.svc.SetRoles(principal.UserID, userID, requestBody.Roles); err != nil {
		return respondServiceError(ctx, err)
	}

	roles, err := h.svc.RolesOf(userID)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, fiber.Map{
		"user_id": userID,
		"roles":   roles,
	})
}

// helpers

func setSessionCookie(ctx *fiber.Ctx, token string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func paramUint(ctx *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Params(name), 10, 32)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}

func userResponse(user *domain.User, roles []string) dto.UserResponse {
	if roles == nil {
		roles = []string{}
	}
	return dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.DisplayName,
		Provider:    user.Provider,
		Roles:       roles,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

func respondServiceError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return utils.ResponseError(ctx, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotAuthorized):
		return utils.ResponseError(ctx, fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrTokenInvalid):
		return utils.ResponseError(ctx, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return utils.ResponseError(ctx, fiber.StatusNotFound, err.Error())
	default:
		// storage and unexpected failures stay generic
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "internal error")
	}
}
