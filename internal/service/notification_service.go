package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"strings"

	"inkwell/internal/content"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
)

// CommentTarget is the item a comment hangs off, resolved once by the
// comment service and shared with the notifier.
type CommentTarget struct {
	Kind         string
	ID           uint
	Title        string
	Path         string
	Author       *models.User
	AllowComment bool
}

// Link returns the absolute URL of comment id on the target.
func (t CommentTarget) Link(frontendURL string, commentID uint) string {
	return fmt.Sprintf("%s%s#comment-%d", strings.TrimRight(frontendURL, "/"), t.Path, commentID)
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "comment_reply"}}<p>Hi {{.Recipient}},</p>
<p>{{.Commenter}} replied to your comment on <strong>{{.Title}}</strong>:</p>
<blockquote>{{.Quote}}</blockquote>
<p>Their reply:</p>
<blockquote>{{.Body}}</blockquote>
<p><a href="{{.Link}}">View the conversation</a></p>{{end}}
{{define "new_comment"}}<p>Hi {{.Recipient}},</p>
<p>{{.Commenter}} commented on <strong>{{.Title}}</strong>:</p>
<blockquote>{{.Body}}</blockquote>
<p><a href="{{.Link}}">View the comment</a></p>{{end}}
{{define "comment_approval"}}<p>Hi {{.Recipient}},</p>
<p>Your comment on <strong>{{.Title}}</strong> was {{.Outcome}}.</p>
<blockquote>{{.Body}}</blockquote>
{{if .Approved}}<p><a href="{{.Link}}">See it on the site</a></p>{{end}}{{end}}
`))

type mailData struct {
	Recipient string
	Commenter string
	Title     string
	Quote     string
	Body      string
	Link      string
	Outcome   string
	Approved  bool
}

// NotificationService turns comment activity into emails. Every method is
// best effort and never returns an error.
type NotificationService struct {
	email       *EmailService
	settings    *SettingsService
	frontendURL string
}

func NewNotificationService(email *EmailService, settings *SettingsService, frontendURL string) *NotificationService {
	return &NotificationService{email: email, settings: settings, frontendURL: frontendURL}
}

func (n *NotificationService) siteName(ctx context.Context) string {
	if n.settings == nil {
		return models.DefaultSiteSettings().SiteName
	}
	return n.settings.SiteName(ctx)
}

// CommentReply tells the parent's author about a reply. Self replies and
// authors without an address are skipped.
func (n *NotificationService) CommentReply(ctx context.Context, target CommentTarget, reply, parent *models.Comment) bool {
	if n == nil || parent == nil || parent.Author.Email == "" || parent.AuthorID == reply.AuthorID {
		return false
	}
	data := mailData{
		Recipient: parent.Author.Username,
		Commenter: reply.Author.Username,
		Title:     target.Title,
		Quote:     content.Truncate(commentText(parent), 100),
		Body:      commentText(reply),
		Link:      target.Link(n.frontendURL, reply.ID),
	}
	text := fmt.Sprintf("Hi %s,\n\n%s replied to your comment on \"%s\":\n\n%s\n\nTheir reply:\n\n%s\n\nView the conversation: %s\n",
		data.Recipient, data.Commenter, data.Title, data.Quote, data.Body, data.Link)
	return n.send(ctx, "comment_reply", data, Message{
		Subject:          fmt.Sprintf("[%s] %s replied to your comment", n.siteName(ctx), data.Commenter),
		Text:             text,
		Recipients:       []string{parent.Author.Email},
		NotificationType: models.NotifyCommentReply,
		RelatedType:      relatedTypeComment,
		RelatedID:        &reply.ID,
	})
}

// NewComment tells the target's author about a comment unless they wrote it.
func (n *NotificationService) NewComment(ctx context.Context, target CommentTarget, comment *models.Comment) bool {
	if n == nil || target.Author == nil || target.Author.Email == "" || target.Author.ID == comment.AuthorID {
		return false
	}
	data := mailData{
		Recipient: target.Author.Username,
		Commenter: comment.Author.Username,
		Title:     target.Title,
		Body:      commentText(comment),
		Link:      target.Link(n.frontendURL, comment.ID),
	}
	text := fmt.Sprintf("Hi %s,\n\n%s commented on \"%s\":\n\n%s\n\nView the comment: %s\n",
		data.Recipient, data.Commenter, data.Title, data.Body, data.Link)
	return n.send(ctx, "new_comment", data, Message{
		Subject:          fmt.Sprintf("[%s] New comment on \"%s\"", n.siteName(ctx), target.Title),
		Text:             text,
		Recipients:       []string{target.Author.Email},
		NotificationType: models.NotifyNewComment,
		RelatedType:      relatedTypeComment,
		RelatedID:        &comment.ID,
	})
}

// CommentApproval tells a commenter the moderation outcome.
func (n *NotificationService) CommentApproval(ctx context.Context, target CommentTarget, comment *models.Comment, approved bool) bool {
	if n == nil || comment.Author.Email == "" {
		return false
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	data := mailData{
		Recipient: comment.Author.Username,
		Title:     target.Title,
		Body:      commentText(comment),
		Link:      target.Link(n.frontendURL, comment.ID),
		Outcome:   outcome,
		Approved:  approved,
	}
	text := fmt.Sprintf("Hi %s,\n\nYour comment on \"%s\" was %s.\n\n%s\n", data.Recipient, data.Title, outcome, data.Body)
	if approved {
		text += fmt.Sprintf("\nSee it on the site: %s\n", data.Link)
	}
	return n.send(ctx, "comment_approval", data, Message{
		Subject:          fmt.Sprintf("[%s] Your comment was %s", n.siteName(ctx), outcome),
		Text:             text,
		Recipients:       []string{comment.Author.Email},
		NotificationType: models.NotifyCommentApproval,
		RelatedType:      relatedTypeComment,
		RelatedID:        &comment.ID,
	})
}

func (n *NotificationService) send(ctx context.Context, tmpl string, data mailData, msg Message) bool {
	if n.email == nil {
		return false
	}
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		middleware.Logger.WarnContext(ctx, "render email template failed", "template", tmpl, "error", err)
	} else {
		msg.HTML = buf.String()
	}
	return n.email.Send(ctx, msg)
}

// commentText undoes the escaping applied when the comment was stored;
// the templates escape again for HTML.
func commentText(c *models.Comment) string {
	return html.UnescapeString(c.Content)
}
