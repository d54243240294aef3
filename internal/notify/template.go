package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/go-faster/errors"
)

const (
	// CredentialsSubject is the subject of the credentials email.
	CredentialsSubject = "Your new account details"
	// CredentialsHeading is the heading of the credentials email.
	CredentialsHeading = "Welcome to our store!"
)

// AccountPath is the account-login page relative to the store URL.
const AccountPath = "/my-account/"

// AccountURL returns the account-login page of the store at storeURL.
func AccountURL(storeURL string) string {
	return strings.TrimRight(storeURL, "/") + AccountPath
}

// ValidateLoginURL checks that u is an absolute http(s) URL.
func ValidateLoginURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Errorf("%q: scheme must be http or https", u)
	}
	if parsed.Host == "" {
		return errors.Errorf("%q: host is required", u)
	}
	return nil
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlCredentials = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/credentials.html.tmpl"))
	textCredentials = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/credentials.txt.tmpl"))
)

// Credentials holds the values rendered into the credentials email.
type Credentials struct {
	Subject  string
	Heading  string
	Username string
	Password string
	LoginURL string
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// RenderCredentials renders the plain-text and HTML parts of the credentials
// email for to.
func RenderCredentials(to string, c Credentials) (Message, error) {
	if c.Subject == "" {
		c.Subject = CredentialsSubject
	}
	if c.Heading == "" {
		c.Heading = CredentialsHeading
	}

	var text, html bytes.Buffer
	if err := textCredentials.Execute(&text, c); err != nil {
		return Message{}, errors.Wrap(err, "render text")
	}
	if err := htmlCredentials.Execute(&html, c); err != nil {
		return Message{}, errors.Wrap(err, "render html")
	}

	return Message{
		To:      to,
		Subject: c.Subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
