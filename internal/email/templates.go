// Package email renders stored templates and dispatches them through a
// transactional email provider, logging every attempt.
package email

import (
	"fmt"
	"strings"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

// Render interpolates {{field}} placeholders in tpl from fields. Unknown
// placeholders are left untouched so missing data is visible in the output.
func Render(tpl string, fields map[string]string) string {
	if len(fields) == 0 {
		return tpl
	}

	pairs := make([]string, 0, len(fields)*2)
	for key, value := range fields {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// RenderedMessage is a template with all placeholders filled in
type RenderedMessage struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// RenderTemplate fills in subject and both bodies of a stored template
func RenderTemplate(t *entity.EmailTemplate, fields map[string]string) (*RenderedMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("template is nil")
	}

	return &RenderedMessage{
		Subject:  Render(t.Subject, fields),
		HTMLBody: Render(t.HTMLBody, fields),
		TextBody: Render(t.TextBody, fields),
	}, nil
}
