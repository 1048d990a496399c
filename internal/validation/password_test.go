package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "blogger2024", false},
		{"Exactly Min Length", "abcdefg1", false},
		{"Exactly Max Length", strings.Repeat("b", 127) + "1", false},
		{"Too Short", "abc1234", true},
		{"Too Long", strings.Repeat("b", 128) + "1", true},
		{"No Digit", "onlyletters", true},
		{"No Letter", "1234567890", true},
		{"Unicode Letters", "密码密码密码12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Starts Dash", "-user", true},
		{"Ends Underscore", "user_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Too Long", "x" + emailAt254, true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"Https", "https://example.com/path?q=1", false},
		{"Http With Port", "http://localhost:8080", false},
		{"Empty", "", true},
		{"Javascript", "javascript:alert(1)", true},
		{"No Host", "https://", true},
		{"Relative", "/about", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, ValidateOptionalURL(""))
	assert.NoError(t, ValidateOptionalURL("/media/a.png"))
	assert.Error(t, ValidateOptionalURL("//evil.example/a.png"))
}

func TestValidateColor(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateColor("#409eff"))
	assert.NoError(t, ValidateColor("#FFF"))
	assert.Error(t, ValidateColor("409eff"))
	assert.Error(t, ValidateColor("#12345"))
}

func TestCleanComment(t *testing.T) {
	t.Parallel()

	got, err := CleanComment("  <b>hi</b> & bye ")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt; &amp; bye", got)

	_, err = CleanComment("   ")
	assert.Error(t, err)

	_, err = CleanComment(strings.Repeat("字", MaxCommentLength))
	assert.NoError(t, err)
	_, err = CleanComment(strings.Repeat("字", MaxCommentLength+1))
	assert.Error(t, err)
}

func TestCleanBio(t *testing.T) {
	t.Parallel()

	got, err := CleanBio("I <3 Go")
	require.NoError(t, err)
	assert.Equal(t, "I &lt;3 Go", got)

	_, err = CleanBio(strings.Repeat("a", MaxBioLength+1))
	assert.Error(t, err)
}

func TestCleanBio_FitsColumnAndIsStable(t *testing.T) {
	t.Parallel()

	got, err := CleanBio(strings.Repeat("a", MaxBioLength))
	require.NoError(t, err)
	assert.Len(t, got, MaxBioLength)

	// 200 runes of input become 800 once escaped
	_, err = CleanBio(strings.Repeat("<", 200))
	assert.Error(t, err)

	first, err := CleanBio("Tom & Jerry <3")
	require.NoError(t, err)
	second, err := CleanBio(first)
	require.NoError(t, err)
	assert.Equal(t, "Tom &amp; Jerry &lt;3", second)
	assert.Equal(t, first, second)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "etcpasswd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "photo.jpg", SanitizeFilename(".photo.jpg"))
	assert.Equal(t, "abc.png", SanitizeFilename(`a<b>c.png`))

	long := SanitizeFilename(strings.Repeat("n", 300) + ".jpeg")
	assert.Len(t, long, 255)
	assert.True(t, strings.HasSuffix(long, ".jpeg"))
}
