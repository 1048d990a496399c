package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/gif" // register GIF decoder
	_ "image/png" // register PNG decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	defaultMediaDir        = "./media"
	defaultMediaURLPrefix  = "/media"
	defaultMediaMaxMB      = 10
	masterMaxSize          = 2048
	avatarMaxSize          = 512
	thumbnailMaxSize       = 480
	jpegQuality            = 82
	webpQuality            = 70
	mediaMasterName        = "master.jpg"
	mediaThumbnailName     = "thumb.webp"
	mediaKindImage         = "image"
	mediaKindAvatar        = "avatar"
	mediaKindCover         = "cover"
	mediaKindPhoto         = "photo"
	mediaKindMusicCover    = "music_cover"
	mediaKindLinkLogo      = "link_logo"
	mediaKindMomentPicture = "moment"
)

var mediaKindLimits = map[string]int{
	mediaKindImage:         masterMaxSize,
	mediaKindCover:         masterMaxSize,
	mediaKindPhoto:         masterMaxSize,
	mediaKindMomentPicture: masterMaxSize,
	mediaKindAvatar:        avatarMaxSize,
	mediaKindMusicCover:    avatarMaxSize,
	mediaKindLinkLogo:      avatarMaxSize,
}

// UploadInput is one uploaded file.
type UploadInput struct {
	UploaderID  uint
	Filename    string
	ContentType string
	Kind        string
	Content     []byte
}

// UploadResult describes a stored image.
type UploadResult struct {
	ID           uint   `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Deduplicated bool   `json:"deduplicated"`
}

// MediaService stores uploaded images as a JPEG master plus a WebP
// thumbnail, deduplicated by the SHA-256 of the upload.
type MediaService struct {
	assets    repository.MediaRepository
	dir       string
	urlPrefix string
	maxBytes  int64
}

func NewMediaService(assets repository.MediaRepository, cfg *config.Config) *MediaService {
	dir, prefix, maxMB := defaultMediaDir, defaultMediaURLPrefix, defaultMediaMaxMB
	if cfg != nil {
		if cfg.MediaDir != "" {
			dir = cfg.MediaDir
		}
		if cfg.MediaURLPrefix != "" {
			prefix = cfg.MediaURLPrefix
		}
		if cfg.MediaMaxUploadMB > 0 {
			maxMB = cfg.MediaMaxUploadMB
		}
	}
	return &MediaService{
		assets:    assets,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(prefix, "/"),
		maxBytes:  int64(maxMB) * 1024 * 1024,
	}
}

// Dir is the directory served under the media URL prefix.
func (s *MediaService) Dir() string { return s.dir }

// URLPrefix is the public path prefix of stored files.
func (s *MediaService) URLPrefix() string { return s.urlPrefix }

// MaxBytes is the largest accepted upload.
func (s *MediaService) MaxBytes() int64 { return s.maxBytes }

func (s *MediaService) url(rel string) string {
	if rel == "" {
		return ""
	}
	return path.Join(s.urlPrefix, rel)
}

// Upload validates, normalizes and stores an image. Uploading the same
// bytes twice returns the first asset.
func (s *MediaService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if len(in.Content) == 0 {
		return nil, models.NewFieldValidationError("file", "no file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewFieldValidationError("file", fmt.Sprintf("file too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if kind == "" {
		kind = mediaKindImage
	}
	limit, ok := mediaKindLimits[kind]
	if !ok {
		return nil, models.NewFieldValidationError("kind", "unknown upload kind")
	}

	detected := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewFieldValidationError("file", "file must be a JPEG, PNG, GIF or WebP image")
	}

	sum := sha256.Sum256(in.Content)
	hash := hex.EncodeToString(sum[:])
	if existing, err := s.assets.GetByHash(ctx, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return s.result(existing, true), nil
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewFieldValidationError("file", "invalid image file")
	}
	if decodedFormatToMime(format) == "" {
		return nil, models.NewFieldValidationError("file", "unsupported image format")
	}

	master := resizeToFit(flatten(decoded), limit, limit)
	masterBytes, err := encodeJPEG(master, jpegQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	thumbBytes, err := encodeWebP(resizeToFit(master, thumbnailMaxSize, thumbnailMaxSize), webpQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	masterRel := path.Join(hash[:2], hash, mediaMasterName)
	thumbRel := path.Join(hash[:2], hash, mediaThumbnailName)
	written := []string{filepath.Join(s.dir, filepath.FromSlash(masterRel)), filepath.Join(s.dir, filepath.FromSlash(thumbRel))}
	if err := writeBytesToFile(written[0], masterBytes); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(written[1], thumbBytes); err != nil {
		cleanupFiles(written)
		return nil, models.NewInternalError(err)
	}

	b := master.Bounds()
	asset := &models.MediaAsset{
		Hash:          hash,
		Path:          masterRel,
		ThumbnailPath: thumbRel,
		Filename:      validation.SanitizeFilename(in.Filename),
		ContentType:   "image/jpeg",
		Width:         b.Dx(),
		Height:        b.Dy(),
		SizeBytes:     int64(len(masterBytes)),
		UploaderID:    in.UploaderID,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		// a concurrent upload of the same bytes won; its files are identical
		if appErr, ok := models.AsAppError(err); ok && appErr.Code == models.CodeConflict {
			if existing, getErr := s.assets.GetByHash(ctx, hash); getErr == nil && existing != nil {
				return s.result(existing, true), nil
			}
		}
		cleanupFiles(written)
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "media stored", "hash", hash, "kind", kind, "bytes", asset.SizeBytes)
	return s.result(asset, false), nil
}

func (s *MediaService) result(a *models.MediaAsset, dedup bool) *UploadResult {
	return &UploadResult{
		ID:           a.ID,
		URL:          s.url(a.Path),
		ThumbnailURL: s.url(a.ThumbnailPath),
		Width:        a.Width,
		Height:       a.Height,
		Deduplicated: dedup,
	}
}

// flatten composites src onto white so transparent areas survive JPEG.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}
	scale := float64(maxWidth) / float64(w)
	if sh := float64(maxHeight) / float64(h); sh < scale {
		scale = sh
	}
	newW, newH := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func decodedFormatToMime(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return ""
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
