package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inkwell/internal/importer"
	"inkwell/internal/service"

	"github.com/urfave/cli/v3"
)

func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Administer accounts",
		Commands: []*cli.Command{
			{
				Name:      "promote",
				Usage:     "Grant admin rights",
				ArgsUsage: "<username|email>",
				Action:    r.UserSetStaff(true),
			},
			{
				Name:      "demote",
				Usage:     "Revoke admin rights",
				ArgsUsage: "<username|email>",
				Action:    r.UserSetStaff(false),
			},
			{
				Name:   "list-admins",
				Usage:  "List admin accounts",
				Action: r.UserListAdmins,
			},
			{
				Name:  "create-admin",
				Usage: "Create an admin account, or promote it if it exists",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Account password",
						Sources: cli.EnvVars("ADMIN_PASSWORD"),
					},
				},
				Action: r.UserCreateAdmin,
			},
		},
	}
}

func navCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "nav",
		Usage: "Manage the navigation menu",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the built-in menu entries that are missing",
				Action: r.NavInit,
			},
		},
	}
}

func settingsCommand(r *Runner) *cli.Command {
	fileFlag := func(usage string) cli.Flag {
		return &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: usage}
	}
	return &cli.Command{
		Name:  "settings",
		Usage: "Back up or restore site settings as TOML",
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Write settings to stdout or a file",
				Flags:  []cli.Flag{fileFlag("Output file (default stdout)")},
				Action: r.SettingsExport,
			},
			{
				Name:   "import",
				Usage:  "Apply settings from a file or stdin",
				Flags:  []cli.Flag{fileFlag("Input file (default stdin)")},
				Action: r.SettingsImport,
			},
		},
	}
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import content",
		Commands: []*cli.Command{
			{
				Name:      "markdown",
				Usage:     "Create or update posts from markdown files with YAML front matter",
				ArgsUsage: "<file.md>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "author",
						Usage:    "Username or email of the post author",
						Required: true,
					},
				},
				Action: r.ImportMarkdown,
			},
		},
	}
}

// UserSetStaff returns the action for promote and demote.
func (r *Runner) UserSetStaff(staff bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		login := strings.TrimSpace(cmd.Args().First())
		if login == "" {
			return fmt.Errorf("a username or email is required")
		}
		if err := r.open(); err != nil {
			return err
		}
		user, err := r.users.SetStaff(ctx, login, staff)
		if err != nil {
			return err
		}
		r.logger.Info("updated account", "id", user.ID, "username", user.Username, "staff", user.IsStaff)
		return nil
	}
}

func (r *Runner) UserListAdmins(ctx context.Context, _ *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	admins, err := r.users.ListStaff(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return r.writef("no admins found\n")
	}
	for _, u := range admins {
		if err := r.writef("%d\t%s\t%s\n", u.ID, u.Username, u.Email); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) UserCreateAdmin(ctx context.Context, cmd *cli.Command) error {
	password := cmd.String("password")
	if password == "" {
		return fmt.Errorf("--password or ADMIN_PASSWORD is required")
	}
	if err := r.open(); err != nil {
		return err
	}
	user, created, err := r.users.EnsureAdmin(ctx, service.RegisterInput{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: password,
	})
	if err != nil {
		return err
	}
	r.logger.Info("admin ready", "id", user.ID, "username", user.Username, "created", created)
	return nil
}

func (r *Runner) NavInit(ctx context.Context, _ *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	created, err := r.settings.InitializeNavigation(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("navigation initialized", "created", created)
	return nil
}

func (r *Runner) SettingsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	path := cmd.String("file")
	if path == "" {
		return importer.ExportSettings(ctx, r.settings, r.output)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := importer.ExportSettings(ctx, r.settings, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.logger.Info("settings exported", "file", path)
	return nil
}

func (r *Runner) SettingsImport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	in := os.Stdin
	if path := cmd.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	if _, err := importer.ImportSettings(ctx, r.settings, in); err != nil {
		return err
	}
	r.logger.Info("settings imported")
	return nil
}

func (r *Runner) ImportMarkdown(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("at least one markdown file is required")
	}
	if err := r.open(); err != nil {
		return err
	}

	author, err := r.users.GetByLogin(ctx, cmd.String("author"))
	if err != nil {
		return err
	}
	if !author.IsStaff {
		return fmt.Errorf("author %s is not an admin", author.Username)
	}

	im := importer.New(r.posts, r.taxonomy)
	var failed int
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			r.logger.Error("failed to read file", "file", path, "error", err)
			failed++
			continue
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := im.ImportMarkdown(ctx, author.ID, name, src)
		if err != nil {
			r.logger.Error("failed to import", "file", path, "error", err)
			failed++
			continue
		}
		r.logger.Info("imported", "file", path, "slug", res.Post.Slug, "created", res.Created)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
