package notify

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"

	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templatesFS embed.FS

type kind struct {
	subject  string
	template string
	data     func() any
}

var kinds = map[string]kind{
	domain.NotificationPlanPublished: {
		subject:  "Your day plan has been published",
		template: "plan_published.html",
		data:     func() any { return &domain.PlanPublishedMailData{} },
	},
	domain.NotificationCrewAssigned: {
		subject:  "You have been assigned to a job",
		template: "crew_assigned.html",
		data:     func() any { return &domain.CrewAssignedMailData{} },
	},
}

// envelope is NotificationMessage with the payload left undecoded until the
// type is known.
type envelope struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Renderer turns queued notifications into mail messages.
type Renderer struct {
	from      string
	templates *template.Template
}

// NewRenderer parses the mail templates from dir, or from the templates
// compiled into the binary when dir is empty.
func NewRenderer(from, dir string) (*Renderer, error) {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(templatesFS, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	tmpl, err := template.ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}
	return &Renderer{from: from, templates: tmpl}, nil
}

// Render decodes a queued message body and builds the e-mail for it.
func (r *Renderer) Render(body []byte) (*mail.Msg, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("notify: decode message: %w", err)
	}

	k, ok := kinds[env.Type]
	if !ok {
		return nil, fmt.Errorf("notify: unsupported notification type %q", env.Type)
	}

	data := k.data()
	if err := json.Unmarshal(env.Data, data); err != nil {
		return nil, fmt.Errorf("notify: decode %s payload: %w", env.Type, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(r.from); err != nil {
		return nil, fmt.Errorf("notify: sender: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return nil, fmt.Errorf("notify: recipient: %w", err)
	}
	msg.Subject(k.subject)

	tmpl := r.templates.Lookup(k.template)
	if tmpl == nil {
		return nil, fmt.Errorf("notify: template %s is missing", k.template)
	}
	if err := msg.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, fmt.Errorf("notify: render %s: %w", env.Type, err)
	}

	return msg, nil
}
