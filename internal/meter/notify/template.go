package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Credit faible]
Credit restant: {{.Balance}} kWh
Seuil: {{.Threshold}} kWh
{{ if .DaysRemaining }}Jours restants estimes: {{.DaysRemaining}}
{{ end }}Declencheur: {{.Trigger}}
Heure: {{.OccurredAt}}
Pensez a recharger votre compteur.`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Balance       string
	Threshold     string
	DaysRemaining string
	Trigger       string
	OccurredAt    string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("low-credit").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
