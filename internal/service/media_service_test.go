package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(t *testing.T, maxMB int) (*MediaService, string) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	dir := t.TempDir()
	cfg := &config.Config{MediaDir: dir, MediaURLPrefix: "/media", MediaMaxUploadMB: maxMB}
	return NewMediaService(repository.NewMediaRepository(db), cfg), dir
}

func TestMediaService_UploadStoresMasterAndThumbnail(t *testing.T) {
	svc, dir := newTestMediaService(t, 1)
	ctx := context.Background()

	content := testutil.TinyPNG(t, 1200, 800)
	res, err := svc.Upload(ctx, UploadInput{UploaderID: 1, Filename: "cover.png", Content: content})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.False(t, res.Deduplicated)
	assert.True(t, strings.HasPrefix(res.URL, "/media/"))
	assert.True(t, strings.HasSuffix(res.URL, "/master.jpg"))
	assert.True(t, strings.HasSuffix(res.ThumbnailURL, "/thumb.webp"))
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 800, res.Height)

	for _, u := range []string{res.URL, res.ThumbnailURL} {
		rel := strings.TrimPrefix(u, "/media/")
		_, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		assert.NoError(t, statErr, "expected file for %s", u)
	}

	again, err := svc.Upload(ctx, UploadInput{UploaderID: 2, Filename: "copy.png", Content: content})
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, res.ID, again.ID)
	assert.Equal(t, res.URL, again.URL)
}

func TestMediaService_DownscalesLargeImages(t *testing.T) {
	svc, dir := newTestMediaService(t, 20)

	content := noisyPNG(t, 3000, 1500)
	res, err := svc.Upload(context.Background(), UploadInput{UploaderID: 1, Filename: "big.png", Content: content})
	require.NoError(t, err)
	assert.Equal(t, masterMaxSize, res.Width)
	assert.Equal(t, masterMaxSize/2, res.Height)

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(res.URL, "/media/"))))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, masterMaxSize, cfg.Width)
}

func TestMediaService_AvatarKindUsesSmallerLimit(t *testing.T) {
	svc, _ := newTestMediaService(t, 5)

	res, err := svc.Upload(context.Background(), UploadInput{
		UploaderID: 1, Filename: "me.png", Kind: "avatar", Content: testutil.TinyPNG(t, 1024, 1024),
	})
	require.NoError(t, err)
	assert.Equal(t, avatarMaxSize, res.Width)
	assert.Equal(t, avatarMaxSize, res.Height)
}

func TestMediaService_TransparentImagesBecomeJPEG(t *testing.T) {
	svc, _ := newTestMediaService(t, 5)

	res, err := svc.Upload(context.Background(), UploadInput{UploaderID: 1, Filename: "alpha.png", Content: transparentPNG(t, 64, 64)})
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(res.URL))
}

func TestMediaService_UploadValidation(t *testing.T) {
	svc, _ := newTestMediaService(t, 1)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    UploadInput
		field string
	}{
		{"empty", UploadInput{Filename: "x.png"}, "file"},
		{"not an image", UploadInput{Filename: "bad.txt", Content: []byte("not an image")}, "file"},
		{"too large", UploadInput{Filename: "huge.png", Content: bytes.Repeat([]byte{'a'}, 2*1024*1024)}, "file"},
		{"unknown kind", UploadInput{Filename: "x.png", Kind: "banner", Content: testutil.TinyPNG(t, 4, 4)}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.in)
			appErr, ok := models.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// #nosec G115: Intn(256) fits in uint8
			img.SetRGBA(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func transparentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// #nosec G115: modulo 255 fits in uint8
			img.SetRGBA(x, y, color.RGBA{R: 255, A: uint8((x + y) % 255)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
