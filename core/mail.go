package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/fourmis/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplMu    sync.RWMutex
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// SiteInfo is passed to every email template alongside the message data.
	SiteInfo struct {
		AppName         string
		FrontendBaseURL string
	}

	ContextData struct {
		SiteInfo
		Data interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) renderText(data ContextData, entry *tmplCacheEntry) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if entry == nil || entry.text == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.text.ExecuteTemplate(&buff, "base", data); err != nil {
		return err
	}
	m.TextContent = strings.TrimSpace(buff.String())
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData, entry *tmplCacheEntry) error {
	if entry == nil || entry.html == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.html.ExecuteTemplate(&buff, "base", data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent and HTMLContent from the message's template (or BodyStr).
func (m *EmailMessage) Render(site SiteInfo) error {
	var entry *tmplCacheEntry
	if m.TemplateName != "" {
		tmplMu.RLock()
		entry = templates[m.TemplateName]
		tmplMu.RUnlock()
		if entry == nil {
			return fmt.Errorf("email template %q not found", m.TemplateName)
		}
	}

	data := ContextData{SiteInfo: site, Data: m.TemplateData}
	if err := m.renderText(data, entry); err != nil {
		return errors.Wrap(err, "rendering text/plain content")
	}
	return errors.Wrap(m.renderHTML(data, entry), "rendering text/html content")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses the embedded email templates.
// Files starting with "_" are layouts shared by every template.
func ParseEmailTemplates(logger Logger) {
	parsed, err := parseEmailTemplates(appfs.FS)
	if err != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	tmplMu.Lock()
	templates = parsed
	tmplMu.Unlock()
}

func parseEmailTemplates(fsys fs.FS) (tmplCache, error) {
	cache := make(tmplCache)

	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		return cache, errors.Wrap(err, "reading templates dir")
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if de.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		fp := path.Join(emailTemplatesDir, fname)
		if ext == ".txt" {
			tmpl, err := texttmpl.New(fname).Option("missingkey=error").
				ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fname)
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.New(fname).Option("missingkey=error").
				ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fname)
			}
			entry.html = tmpl
		}
	}
	return cache, nil
}
