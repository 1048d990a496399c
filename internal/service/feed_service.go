package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/gorilla/feeds"
)

const (
	feedPostsLimit    = 20
	feedCommentsLimit = 30
	feedSummaryRunes  = 200
)

// Feed formats.
const (
	FormatRSS  = "rss"
	FormatAtom = "atom"
)

// FeedService renders syndication feeds for posts and comments.
type FeedService struct {
	posts       repository.PostRepository
	categories  repository.CategoryRepository
	comments    repository.CommentRepository
	moments     repository.MomentRepository
	albums      repository.AlbumRepository
	settings    *SettingsService
	frontendURL string
}

func NewFeedService(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	comments repository.CommentRepository,
	moments repository.MomentRepository,
	albums repository.AlbumRepository,
	settings *SettingsService,
	frontendURL string,
) *FeedService {
	return &FeedService{
		posts:       posts,
		categories:  categories,
		comments:    comments,
		moments:     moments,
		albums:      albums,
		settings:    settings,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (s *FeedService) site(ctx context.Context) models.SiteSettings {
	if s.settings != nil {
		if st, err := s.settings.Get(ctx); err == nil {
			return *st
		}
	}
	return models.DefaultSiteSettings()
}

// Posts renders the newest public posts.
func (s *FeedService) Posts(ctx context.Context, format string) (string, error) {
	site := s.site(ctx)
	posts, err := s.posts.ListPublic(ctx, nil, feedPostsLimit)
	if err != nil {
		return "", err
	}
	desc := site.SiteDescription
	if desc == "" {
		desc = "Latest posts"
	}
	feed := &feeds.Feed{
		Title:       site.SiteName + " - Latest posts",
		Link:        &feeds.Link{Href: s.frontendURL},
		Description: desc,
	}
	return s.renderPosts(feed, posts, true, format)
}

// Category renders the newest public posts of one category.
func (s *FeedService) Category(ctx context.Context, slug, format string) (string, error) {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	site := s.site(ctx)
	posts, err := s.posts.ListPublic(ctx, &category.ID, feedPostsLimit)
	if err != nil {
		return "", err
	}
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - %s", site.SiteName, category.Name),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/category/%s", s.frontendURL, category.Slug)},
		Description: fmt.Sprintf("Latest posts in %s", category.Name),
	}
	return s.renderPosts(feed, posts, false, format)
}

func (s *FeedService) renderPosts(feed *feeds.Feed, posts []models.Post, withCategory bool, format string) (string, error) {
	categories := make([][]string, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/post/%s", s.frontendURL, p.Slug)},
			Id:          fmt.Sprintf("%s/post/%s", s.frontendURL, p.Slug),
			Description: content.Sanitize(content.Summary(p.Excerpt, p.Content, feedSummaryRunes)),
			Author:      &feeds.Author{Name: p.Author.Username},
			Created:     p.DisplayTime(),
			Updated:     p.UpdatedAt,
		})
		var cats []string
		if withCategory && p.Category != nil {
			cats = append(cats, p.Category.Name)
		}
		for _, t := range p.Tags {
			cats = append(cats, t.Name)
		}
		categories = append(categories, cats)
	}
	feed.Updated = latest(feed.Items)

	if format == FormatAtom {
		return feed.ToAtom()
	}
	rss := (&feeds.Rss{Feed: feed}).RssFeed()
	for i, item := range rss.Items {
		if i < len(categories) && len(categories[i]) > 0 {
			item.Category = strings.Join(categories[i], ", ")
		}
	}
	return feeds.ToXML(rss)
}

// Comments renders the newest approved comments.
func (s *FeedService) Comments(ctx context.Context, format string) (string, error) {
	site := s.site(ctx)
	comments, err := s.comments.ListLatestApproved(ctx, "", true, feedCommentsLimit)
	if err != nil {
		return "", err
	}
	targets := s.commentTargets(ctx, comments)

	desc := site.SiteDescription
	if desc == "" {
		desc = "Latest comments"
	}
	feed := &feeds.Feed{
		Title:       site.SiteName + " - Latest comments",
		Link:        &feeds.Link{Href: s.frontendURL},
		Description: desc,
	}
	for i := range comments {
		c := &comments[i]
		// comments on hidden items stay out of the feed
		t, ok := targets[targetKey{c.ContentType, c.ObjectID}]
		if !ok {
			continue
		}
		link := t.Link(s.frontendURL, c.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       fmt.Sprintf("%s commented on %s", c.Author.Username, t.Title),
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: content.Sanitize(c.Content),
			Author:      &feeds.Author{Name: c.Author.Username},
			Created:     c.CreatedAt,
			Updated:     c.UpdatedAt,
		})
	}
	feed.Updated = latest(feed.Items)
	if format == FormatAtom {
		return feed.ToAtom()
	}
	return feed.ToRss()
}

type targetKey struct {
	kind string
	id   uint
}

// commentTargets resolves the public items the comments belong to. Items
// that are gone or hidden are left out.
func (s *FeedService) commentTargets(ctx context.Context, comments []models.Comment) map[targetKey]CommentTarget {
	out := make(map[targetKey]CommentTarget)
	var postIDs, albumIDs []uint
	for _, c := range comments {
		switch c.ContentType {
		case models.TargetPost:
			postIDs = append(postIDs, c.ObjectID)
		case models.TargetAlbum:
			albumIDs = append(albumIDs, c.ObjectID)
		case models.TargetMoment:
			key := targetKey{c.ContentType, c.ObjectID}
			if _, seen := out[key]; seen {
				continue
			}
			m, err := s.moments.GetByID(ctx, c.ObjectID)
			if err != nil || m.Visibility != models.VisibilityPublic {
				continue
			}
			out[key] = CommentTarget{
				Kind:  models.TargetMoment,
				ID:    m.ID,
				Title: content.Truncate(content.PlainText(m.Content), 50),
				Path:  fmt.Sprintf("/moments/%d", m.ID),
			}
		}
	}
	if len(postIDs) > 0 {
		if posts, err := s.posts.GetByIDs(ctx, postIDs); err == nil {
			for _, p := range posts {
				if !p.IsPublished() {
					continue
				}
				out[targetKey{models.TargetPost, p.ID}] = CommentTarget{
					Kind: models.TargetPost, ID: p.ID, Title: p.Title, Path: "/post/" + p.Slug,
				}
			}
		}
	}
	if len(albumIDs) > 0 {
		if albums, err := s.albums.GetByIDs(ctx, albumIDs); err == nil {
			for _, a := range albums {
				out[targetKey{models.TargetAlbum, a.ID}] = CommentTarget{
					Kind: models.TargetAlbum, ID: a.ID, Title: a.Name, Path: "/photos/" + a.Slug,
				}
			}
		}
	}
	return out
}

func latest(items []*feeds.Item) time.Time {
	var t time.Time
	for _, it := range items {
		if it.Updated.After(t) {
			t = it.Updated
		}
		if it.Created.After(t) {
			t = it.Created
		}
	}
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
