package dto

type ArticleCreateRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

type ArticleUpdateRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type ArticleResponse struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	UserID     uint   `json:"user_id"`
	AuthorName string `json:"author_name,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}
