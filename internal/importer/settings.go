package importer

import (
	"context"
	"fmt"
	"io"

	"inkwell/internal/service"

	"github.com/BurntSushi/toml"
)

// SettingsFile is the TOML layout of exported site settings. The SMTP
// password is never exported but is accepted on import.
type SettingsFile struct {
	Site  SiteSection  `toml:"site"`
	Email EmailSection `toml:"email"`
}

type SiteSection struct {
	Name         *string `toml:"name"`
	Description  *string `toml:"description"`
	Keywords     *string `toml:"keywords"`
	Icon         *string `toml:"icon"`
	AboutContent *string `toml:"about_content,multiline"`
}

type EmailSection struct {
	Notifications *bool   `toml:"notifications"`
	Host          *string `toml:"host"`
	Port          *int    `toml:"port"`
	UseTLS        *bool   `toml:"use_tls"`
	UseSSL        *bool   `toml:"use_ssl"`
	User          *string `toml:"user"`
	Password      *string `toml:"password,omitempty"`
	From          *string `toml:"from"`
}

// ExportSettings writes the current settings to w as TOML.
func ExportSettings(ctx context.Context, settings *service.SettingsService, w io.Writer) error {
	s, err := settings.Get(ctx)
	if err != nil {
		return err
	}
	doc := SettingsFile{
		Site: SiteSection{
			Name:         &s.SiteName,
			Description:  &s.SiteDescription,
			Keywords:     &s.SiteKeywords,
			Icon:         &s.SiteIcon,
			AboutContent: &s.AboutContent,
		},
		Email: EmailSection{
			Notifications: &s.EnableEmailNotification,
			Host:          &s.EmailHost,
			Port:          &s.EmailPort,
			UseTLS:        &s.EmailUseTLS,
			UseSSL:        &s.EmailUseSSL,
			User:          &s.EmailHostUser,
			From:          &s.EmailFrom,
		},
	}
	return toml.NewEncoder(w).Encode(doc)
}

// ImportSettings applies a TOML settings file. Keys missing from the file
// leave the stored value alone.
func ImportSettings(ctx context.Context, settings *service.SettingsService, r io.Reader) (*SettingsFile, error) {
	var doc SettingsFile
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("invalid settings file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown settings key %q", undecoded[0].String())
	}

	_, err = settings.Update(ctx, service.SettingsInput{
		SiteName:                doc.Site.Name,
		SiteDescription:         doc.Site.Description,
		SiteKeywords:            doc.Site.Keywords,
		SiteIcon:                doc.Site.Icon,
		AboutContent:            doc.Site.AboutContent,
		EnableEmailNotification: doc.Email.Notifications,
		EmailHost:               doc.Email.Host,
		EmailPort:               doc.Email.Port,
		EmailUseTLS:             doc.Email.UseTLS,
		EmailUseSSL:             doc.Email.UseSSL,
		EmailHostUser:           doc.Email.User,
		EmailHostPassword:       doc.Email.Password,
		EmailFrom:               doc.Email.From,
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
