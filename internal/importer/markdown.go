// Package importer moves content in and out of the blog from files:
// markdown posts with YAML front matter, and site settings as TOML.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"gopkg.in/yaml.v3"
)

var frontMatterDelim = []byte("---")

// FrontMatter is the YAML header of an imported markdown file.
type FrontMatter struct {
	Title       string     `yaml:"title"`
	Slug        string     `yaml:"slug"`
	Excerpt     string     `yaml:"excerpt"`
	Category    string     `yaml:"category"`
	Tags        []string   `yaml:"tags"`
	Status      string     `yaml:"status"`
	PublishedAt *time.Time `yaml:"published_at"`
	IsTop       bool       `yaml:"is_top"`
}

// ParseMarkdown splits a document into its front matter and body. A file
// without a leading "---" line has no front matter.
func ParseMarkdown(src []byte) (FrontMatter, string, error) {
	var fm FrontMatter
	src = bytes.TrimPrefix(src, []byte("\ufeff"))
	if !bytes.HasPrefix(src, frontMatterDelim) {
		return fm, string(src), nil
	}

	rest := src[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, string(src), nil
	}
	rest = rest[nl+1:]

	var header []byte
	for {
		nl = bytes.IndexByte(rest, '\n')
		line := rest
		if nl >= 0 {
			line = rest[:nl]
		}
		if bytes.Equal(bytes.TrimRight(line, "\r "), frontMatterDelim) {
			if nl < 0 {
				rest = nil
			} else {
				rest = rest[nl+1:]
			}
			break
		}
		if nl < 0 {
			return fm, "", errors.New("front matter is not terminated")
		}
		header = append(header, rest[:nl+1]...)
		rest = rest[nl+1:]
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", fmt.Errorf("invalid front matter: %w", err)
	}
	return fm, strings.TrimLeft(string(rest), "\r\n"), nil
}

// Importer creates posts, along with any missing categories and tags.
type Importer struct {
	posts    *service.PostService
	taxonomy *service.TaxonomyService
}

func New(posts *service.PostService, taxonomy *service.TaxonomyService) *Importer {
	return &Importer{posts: posts, taxonomy: taxonomy}
}

// Result reports what happened to one imported file.
type Result struct {
	Post    *service.PostDetail
	Created bool
}

// ImportMarkdown stores one markdown document as a post by authorID. The
// title falls back to name when the front matter has none. A post whose
// slug already exists is updated in place.
func (im *Importer) ImportMarkdown(ctx context.Context, authorID uint, name string, src []byte) (*Result, error) {
	fm, body, err := ParseMarkdown(src)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = strings.TrimSpace(name)
	}
	if title == "" {
		return nil, models.NewFieldValidationError("title", "title is required")
	}

	status := strings.ToLower(strings.TrimSpace(fm.Status))
	switch status {
	case "":
		status = models.PostStatusDraft
	case models.PostStatusDraft, models.PostStatusPublished:
	default:
		return nil, models.NewFieldValidationError("status", fmt.Sprintf("unknown status %q", fm.Status))
	}

	in := service.PostInput{
		Title:   &title,
		Content: &body,
		Status:  &status,
		IsTop:   &fm.IsTop,
	}
	if fm.Excerpt != "" {
		in.Excerpt = &fm.Excerpt
	}
	if fm.PublishedAt != nil {
		at := fm.PublishedAt.UTC()
		in.PublishedAt = &at
	}

	if fm.Category != "" {
		cat, err := im.ensureCategory(ctx, fm.Category)
		if err != nil {
			return nil, err
		}
		in.CategoryID, in.CategorySet = &cat.ID, true
	}
	tagIDs := make([]uint, 0, len(fm.Tags))
	for _, t := range fm.Tags {
		tag, err := im.ensureTag(ctx, t)
		if err != nil {
			return nil, err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	in.TagIDs = &tagIDs

	if s := strings.TrimSpace(fm.Slug); s != "" {
		in.Slug = &s
		post, err := im.posts.Update(ctx, s, in)
		if err == nil {
			return &Result{Post: post}, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	post, err := im.posts.Create(ctx, authorID, in)
	if err != nil {
		return nil, err
	}
	return &Result{Post: post, Created: true}, nil
}

func (im *Importer) ensureCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	s := content.Slugify(name, "")
	if s != "" {
		cat, err := im.taxonomy.GetCategory(ctx, s)
		if err == nil {
			return cat, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return im.taxonomy.CreateCategory(ctx, service.CategoryInput{Name: &name})
}

func (im *Importer) ensureTag(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	s := content.Slugify(name, "")
	if s != "" {
		tag, err := im.taxonomy.GetTag(ctx, s)
		if err == nil {
			return tag, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return im.taxonomy.CreateTag(ctx, service.TagInput{Name: &name})
}

func isNotFound(err error) bool {
	appErr, ok := models.AsAppError(err)
	return ok && appErr.Code == models.CodeNotFound
}
