package repository

import (
	"errors"

	"github.com/inkpress/account_service/internal/domain"
	"gorm.io/gorm"
)

type ArticleRepository interface {
	CreateArticle(article *domain.Article) (*domain.Article, error)
	FindArticleById(articleID uint) (*domain.Article, error)
	ListArticles(limit, offset int) ([]domain.Article, error)
	SaveArticle(article *domain.Article) error
	DeleteArticle(articleID uint) error
}

type articleRepository struct {
	db *gorm.DB
}

func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) CreateArticle(article *domain.Article) (*domain.Article, error) {
	if article == nil {
		return nil, errors.New("nil article")
	}

	if err := r.db.Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

func (r *articleRepository) FindArticleById(articleID uint) (*domain.Article, error) {
	article := &domain.Article{}
	if err := r.db.Preload("User").First(article, articleID).Error; err != nil {
		return nil, err
	}
	return article, nil
}

func (r *articleRepository) ListArticles(limit, offset int) ([]domain.Article, error) {
	var articles []domain.Article
	err := r.db.
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&articles).Error
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *articleRepository) SaveArticle(article *domain.Article) error {
	if article == nil {
		return errors.New("nil article")
	}
	return r.db.Save(article).Error
}

func (r *articleRepository) DeleteArticle(articleID uint) error {
	if articleID == 0 {
		return errors.New("invalid article_id")
	}
	return r.db.Delete(&domain.Article{}, articleID).Error
}
