package service

import (
	"time"

	"inkwell/internal/content"
	"inkwell/internal/models"
)

// CategoryRef is the short form of a category embedded in posts.
type CategoryRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TagRef is the short form of a tag embedded in posts.
type TagRef struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

// PostListItem is a post without its body.
type PostListItem struct {
	ID           uint               `json:"id"`
	Title        string             `json:"title"`
	Slug         string             `json:"slug"`
	Excerpt      string             `json:"excerpt"`
	Cover        string             `json:"cover"`
	Author       *models.PublicUser `json:"author"`
	Category     *CategoryRef       `json:"category"`
	Tags         []TagRef           `json:"tags"`
	Status       string             `json:"status"`
	IsTop        bool               `json:"is_top"`
	IsOriginal   bool               `json:"is_original"`
	AllowComment bool               `json:"allow_comment"`
	IsEncrypted  bool               `json:"is_encrypted"`
	Views        int64              `json:"views"`
	Likes        int64              `json:"likes"`
	WordCount    int                `json:"word_count"`
	ReadTime     int                `json:"read_time"`
	PublishedAt  *time.Time         `json:"published_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// PostDetail is a full post. Content fields are nil while a password
// protected post is locked for the caller.
type PostDetail struct {
	PostListItem
	Content            *string           `json:"content"`
	ContentHTML        *string           `json:"content_html"`
	TOC                []models.TOCEntry `json:"toc"`
	PreviewContentHTML string            `json:"preview_content_html,omitempty"`
	IsPasswordVerified bool              `json:"is_password_verified"`
	IsLiked            bool              `json:"is_liked"`
}

// HotPost is a list item with its ranking score.
type HotPost struct {
	PostListItem
	HotScore float64 `json:"hot_score"`
}

// Suggestion is one search-as-you-type hit.
type Suggestion struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// AutosaveResult acknowledges a saved draft.
type AutosaveResult struct {
	ID      uint      `json:"id"`
	Slug    string    `json:"slug"`
	SavedAt time.Time `json:"saved_at"`
}

func newPostListItem(p *models.Post) PostListItem {
	item := PostListItem{
		ID:           p.ID,
		Title:        p.Title,
		Slug:         p.Slug,
		Excerpt:      p.Excerpt,
		Cover:        p.Cover,
		Author:       p.Author.Public(),
		Status:       p.Status,
		IsTop:        p.IsTop,
		IsOriginal:   p.IsOriginal,
		AllowComment: p.AllowComment,
		IsEncrypted:  p.IsEncrypted,
		Views:        p.Views,
		Likes:        p.Likes,
		WordCount:    content.WordCount(p.Content),
		ReadTime:     content.ReadTime(p.Content),
		PublishedAt:  p.PublishedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Tags:         make([]TagRef, 0, len(p.Tags)),
	}
	if p.Category != nil {
		item.Category = &CategoryRef{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	for _, t := range p.Tags {
		item.Tags = append(item.Tags, TagRef{ID: t.ID, Name: t.Name, Slug: t.Slug, Color: t.Color})
	}
	return item
}

func newPostListItems(posts []models.Post) []PostListItem {
	out := make([]PostListItem, 0, len(posts))
	for i := range posts {
		out = append(out, newPostListItem(&posts[i]))
	}
	return out
}

// newPostDetail builds the detail view. unlocked controls whether the body
// is exposed.
func newPostDetail(p *models.Post, unlocked, liked bool) *PostDetail {
	d := &PostDetail{
		PostListItem:       newPostListItem(p),
		IsPasswordVerified: unlocked,
		IsLiked:            liked,
	}
	if !unlocked {
		d.PreviewContentHTML = content.Preview(p.ContentHTML)
		return d
	}
	body, rendered := p.Content, p.ContentHTML
	d.Content = &body
	d.ContentHTML = &rendered
	d.TOC = append([]models.TOCEntry{}, p.TOC...)
	return d
}
