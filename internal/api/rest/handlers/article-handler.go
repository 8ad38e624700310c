package handlers

import (
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

type ArticleHandler struct {
	svc        services.ArticleService
	accountSvc services.AccountService
	auth       helper.Auth
}

func NewArticleHandler(svc services.ArticleService, accountSvc services.AccountService, auth helper.Auth) *ArticleHandler {
	return &ArticleHandler{svc: svc, accountSvc: accountSvc, auth: auth}
}

func (h *ArticleHandler) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	articles := api.Group("/articles")
	articles.Get("/", h.List)
	articles.Get("/:articleID", h.Read)

	authed := articles.Group("", middleware.AuthMiddleware(h.auth, h.accountSvc))
	authed.Post("/", h.Create)
	authed.Put("/:articleID", h.Update)
	authed.Delete("/:articleID", h.Delete)
}

func (h *ArticleHandler) Create(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	var requestBody dto.ArticleCreateRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	article, err := h.svc.CreateArticle(principal.UserID, requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, articleResponse(article))
}

func (h *ArticleHandler) List(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	articles, err := h.svc.ListArticles(limit, offset)
	if err != nil {
		return respondServiceError(ctx, err)
	}

	resp := make([]dto.ArticleResponse, 0, len(articles))
	for i := range articles {
		resp = append(resp, articleResponse(&articles[i]))
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *ArticleHandler) Read(ctx *fiber.Ctx) error {
	articleID, err := paramUint(ctx, "articleID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid article id")
	}

	article, err := h.svc.GetArticle(articleID)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, articleResponse(article))
}

func (h *ArticleHandler) Update(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	articleID, err := paramUint(ctx, "articleID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid article id")
	}

	var requestBody dto.ArticleUpdateRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	article, err := h.svc.UpdateArticle(principal, articleID, requestBody)
	if err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, articleResponse(article))
}

func (h *ArticleHandler) Delete(ctx *fiber.Ctx) error {
	principal, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	articleID, err := paramUint(ctx, "articleID")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid article id")
	}

	if err := h.svc.DeleteArticle(principal, articleID); err != nil {
		return respondServiceError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, "Article deleted")
}

func articleResponse(article *domain.Article) dto.ArticleResponse {
	resp := dto.ArticleResponse{
		ID:        article.ID,
		Title:     article.Title,
		Content:   article.Content,
		UserID:    article.UserID,
		CreatedAt: article.CreatedAt.Format(time.RFC3339),
		UpdatedAt: article.UpdatedAt.Format(time.RFC3339),
	}
	if article.User != nil {
		resp.AuthorName = article.User.DisplayName
	}
	return resp
}
