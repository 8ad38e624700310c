package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/dto"
	"github.com/inkpress/account_service/internal/repository"
	"gorm.io/gorm"
)

type ArticleService interface {
	CreateArticle(userID uint, input dto.ArticleCreateRequest) (*domain.Article, error)
	GetArticle(articleID uint) (*domain.Article, error)
	ListArticles(limit, offset int) ([]domain.Article, error)
	UpdateArticle(principal dto.Principal, articleID uint, input dto.ArticleUpdateRequest) (*domain.Article, error)
	DeleteArticle(principal dto.Principal, articleID uint) error
}

type articleService struct {
	repo repository.ArticleRepository
}

func NewArticleService(repo repository.ArticleRepository) ArticleService {
	return &articleService{repo: repo}
}

func (s *articleService) CreateArticle(userID uint, input dto.ArticleCreateRequest) (*domain.Article, error) {
	if userID == 0 {
		return nil, validationErr("invalid user_id")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationErr("title is required")
	}

	article := &domain.Article{
		Title:   title,
		Content: input.Content,
		UserID:  userID,
	}
	created, err := s.repo.CreateArticle(article)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return created, nil
}

func (s *articleService) GetArticle(articleID uint) (*domain.Article, error) {
	if articleID == 0 {
		return nil, validationErr("invalid article_id")
	}

	article, err := s.repo.FindArticleById(articleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return article, nil
}

func (s *articleService) ListArticles(limit, offset int) ([]domain.Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	articles, err := s.repo.ListArticles(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return articles, nil
}

func (s *articleService) UpdateArticle(principal dto.Principal, articleID uint, input dto.ArticleUpdateRequest) (*domain.Article, error) {
	article, err := s.GetArticle(articleID)
	if err != nil {
		return nil, err
	}

	if article.UserID != principal.UserID && !principal.HasRole(domain.RoleAdmin) {
		return nil, ErrNotAuthorized
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationErr("title cannot be empty")
		}
		article.Title = title
	}
	if input.Content != nil {
		article.Content = *input.Content
	}

	if err := s.repo.SaveArticle(article); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return article, nil
}

func (s *articleService) DeleteArticle(principal dto.Principal, articleID uint) error {
	article, err := s.GetArticle(articleID)
	if err != nil {
		return err
	}

	if article.UserID != principal.UserID && !principal.HasRole(domain.RoleAdmin) {
		return ErrNotAuthorized
	}

	if err := s.repo.DeleteArticle(articleID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
