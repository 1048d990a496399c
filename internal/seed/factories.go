// Package seed fills a database with demo blog content for development and
// manual testing. Everything goes through the services so slugs, rendered
// HTML and counters look exactly like content written through the API.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoPassword is the password of every generated account.
const DemoPassword = "password123"

// Factory builds domain entities through the service layer.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	now   time.Time

	users    *service.UserService
	taxonomy *service.TaxonomyService
	posts    *service.PostService
	comments *service.CommentService
	moments  *service.MomentService
	albums   *service.AlbumService
	music    *service.MusicService
	links    *service.LinkService
}

// NewFactory binds a factory to db. A zero seed picks a random one.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	momentRepo := repository.NewMomentRepository(db)
	albumRepo := repository.NewAlbumRepository(db)

	return &Factory{
		db:       db,
		faker:    gofakeit.New(seed),
		now:      time.Now().UTC(),
		users:    service.NewUserService(repository.NewUserRepository(db)),
		taxonomy: service.NewTaxonomyService(categoryRepo, tagRepo),
		posts:    service.NewPostService(postRepo, categoryRepo, tagRepo, commentRepo, nil, nil),
		// no notifier: seeding never sends mail
		comments: service.NewCommentService(commentRepo, postRepo, momentRepo, albumRepo, nil, nil, nil),
		moments:  service.NewMomentService(momentRepo, nil),
		albums:   service.NewAlbumService(albumRepo),
		music:    service.NewMusicService(repository.NewMusicRepository(db)),
		links:    service.NewLinkService(repository.NewLinkRepository(db)),
	}
}

// CreateUser registers an account. Staff accounts may write posts.
func (f *Factory) CreateUser(ctx context.Context, staff bool) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := fmt.Sprintf("%s%d", strings.ToLower(first), f.faker.Number(100, 99999))
	in := service.RegisterInput{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: DemoPassword,
	}
	if staff {
		user, _, err := f.users.EnsureAdmin(ctx, in)
		return user, err
	}
	user, err := f.users.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	bio := f.faker.Sentence(10)
	return f.users.UpdateProfile(ctx, user.ID, service.ProfileInput{FirstName: &first, LastName: &last, Bio: &bio})
}

// CreateCategory adds a category, nested under parent when it is non-nil.
func (f *Factory) CreateCategory(ctx context.Context, name string, parent *models.Category) (*models.Category, error) {
	desc := f.faker.Sentence(8)
	in := service.CategoryInput{Name: &name, Description: &desc}
	if parent != nil {
		in.ParentID, in.ParentSet = &parent.ID, true
	}
	return f.taxonomy.CreateCategory(ctx, in)
}

// CreateTag adds a tag with a random color.
func (f *Factory) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	color := f.faker.HexColor()
	return f.taxonomy.CreateTag(ctx, service.TagInput{Name: &name, Color: &color})
}

// CreatePost writes a published markdown post by author.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, category *models.Category, tags []models.Tag) (*service.PostDetail, error) {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 7)), ".")
	body := f.markdown()
	excerpt := f.faker.Sentence(16)
	status := models.PostStatusPublished
	published := f.now.Add(-time.Duration(f.faker.Number(1, 24*90)) * time.Hour)
	tagIDs := make([]uint, 0, len(tags))
	for _, t := range tags {
		tagIDs = append(tagIDs, t.ID)
	}

	in := service.PostInput{
		Title:       &title,
		Content:     &body,
		Excerpt:     &excerpt,
		Status:      &status,
		PublishedAt: &published,
		TagIDs:      &tagIDs,
	}
	if category != nil {
		in.CategoryID, in.CategorySet = &category.ID, true
	}
	return f.posts.Create(ctx, author.ID, in)
}

// markdown produces a post body with a few headings so the table of
// contents has something to show.
func (f *Factory) markdown() string {
	var sb strings.Builder
	sections := f.faker.Number(2, 4)
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&sb, "## %s\n\n", strings.TrimSuffix(f.faker.Sentence(4), "."))
		sb.WriteString(f.faker.Paragraph(1, 4, 12, " "))
		sb.WriteString("\n\n")
		if f.faker.Bool() {
			fmt.Fprintf(&sb, "```go\nfmt.Println(%q)\n```\n\n", f.faker.HipsterWord())
		}
		if f.faker.Bool() {
			fmt.Fprintf(&sb, "- %s\n- %s\n\n", f.faker.HipsterSentence(4), f.faker.HipsterSentence(5))
		}
	}
	return sb.String()
}

// CreateComment comments on a post, optionally as a reply.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, postID uint, parent *uint) (*service.CommentView, error) {
	return f.comments.Create(ctx, service.Viewer{UserID: author.ID, IsStaff: author.IsStaff}, service.CommentInput{
		ContentType: models.TargetPost,
		ObjectID:    postID,
		Content:     f.faker.Sentence(f.faker.Number(6, 20)),
		ParentID:    parent,
		IP:          f.faker.IPv4Address(),
		UserAgent:   f.faker.UserAgent(),
	})
}

// LikePost toggles a like by user.
func (f *Factory) LikePost(ctx context.Context, user *models.User, slug string) error {
	_, err := f.posts.ToggleLike(ctx, slug, user.ID)
	return err
}

// CreateMoment posts a short status update.
func (f *Factory) CreateMoment(ctx context.Context, author *models.User) (*service.MomentView, error) {
	text := f.faker.HipsterSentence(f.faker.Number(5, 15))
	location := f.faker.City()
	images := []string{}
	if f.faker.Bool() {
		images = append(images, fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID()))
	}
	return f.moments.Create(ctx, service.Viewer{UserID: author.ID, IsStaff: author.IsStaff}, service.MomentInput{
		Content:  &text,
		Images:   &images,
		Location: &location,
	})
}

// CreateAlbum adds an album with photos. A non-empty password protects it.
func (f *Factory) CreateAlbum(ctx context.Context, author *models.User, photos int, password string) (*service.AlbumView, error) {
	name := strings.TrimSuffix(f.faker.Sentence(3), ".")
	desc := f.faker.Sentence(10)
	encrypted := password != ""
	in := service.AlbumInput{Name: &name, Description: &desc, IsEncrypted: &encrypted}
	if encrypted {
		in.Password = &password
	}
	album, err := f.albums.Create(ctx, author.ID, in)
	if err != nil {
		return nil, err
	}
	for i := 0; i < photos; i++ {
		seed := f.faker.UUID()
		title := f.faker.HipsterWord()
		image := fmt.Sprintf("https://picsum.photos/seed/%s/1600/1200", seed)
		thumb := fmt.Sprintf("https://picsum.photos/seed/%s/400/300", seed)
		order := i
		if _, err := f.albums.AddPhoto(ctx, album.Slug, service.PhotoInput{
			Title: &title, Image: &image, Thumbnail: &thumb, Order: &order,
		}); err != nil {
			return nil, err
		}
	}
	return album, nil
}

// CreateTrack adds a published song to the playlist.
func (f *Factory) CreateTrack(ctx context.Context, author *models.User, order int) (*models.Music, error) {
	title := fmt.Sprintf("%s %s", f.faker.BuzzWord(), f.faker.HipsterWord())
	artist := f.faker.Name()
	audio := fmt.Sprintf("https://cdn.example.com/audio/%s.mp3", f.faker.UUID())
	duration := f.faker.Number(120, 420)
	return f.music.Create(ctx, author.ID, service.MusicInput{
		Title:     &title,
		Artist:    &artist,
		AudioFile: &audio,
		Duration:  &duration,
		Order:     &order,
	})
}

// CreateLinks adds a link category holding n friend links.
func (f *Factory) CreateLinks(ctx context.Context, category string, n int) ([]models.Link, error) {
	cat, err := f.links.CreateCategory(ctx, service.LinkCategoryInput{Name: &category})
	if err != nil {
		return nil, err
	}
	out := make([]models.Link, 0, n)
	for i := 0; i < n; i++ {
		name := f.faker.Company()
		url := fmt.Sprintf("https://%s", f.faker.DomainName())
		desc := f.faker.BuzzWord()
		order := i
		link, err := f.links.Create(ctx, service.LinkInput{
			Name: &name, URL: &url, Description: &desc, Order: &order,
			CategoryID: &cat.ID, CategorySet: true,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *link)
	}
	return out, nil
}
