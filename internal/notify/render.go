package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"plural": func(n int) string {
		if n == 1 {
			return ""
		}
		return "s"
	},
	"longDate": func(r Reminder) string {
		return r.Item.ExpiryDate.Format("Monday, January 2, 2006")
	},
}

var messageTmpl = template.Must(template.New("message").Funcs(funcs).Parse(
	`*Shramba Reminder*

Your *{{.Item.Name}}* expires on *{{.Item.ExpiryDate}}*
{{- if le .DaysLeft 0}} (Expired!)
{{- else if eq .DaysLeft 1}} (Tomorrow!)
{{- else}} ({{.DaysLeft}} days left){{end}}

{{if .Recipes}}*Recipe Ideas:*
{{range $i, $r := .Recipes}}{{inc $i}}. {{$r.Name}}
{{end}}
{{end}}Don't let it go to waste!`))

var subjectTmpl = template.Must(template.New("subject").Funcs(funcs).Parse(
	`Expiry Alert: {{.Item.Name}} expires in {{.DaysLeft}} day{{plural .DaysLeft}}!`))

var emailTmpl = template.Must(template.New("email").Funcs(funcs).Parse(
	`EXPIRY ALERT: {{.Item.Name}}

Your item "{{.Item.Name}}" is expiring on {{longDate .}} (in {{.DaysLeft}} day{{plural .DaysLeft}})!

{{if .Recipes}}Don't let it go to waste! Here are some recipes you can make:

{{range $i, $r := .Recipes}}{{inc $i}}. {{$r.Name}}
{{- if $r.ReadyInMinutes}} (ready in {{$r.ReadyInMinutes}} min){{end}}
{{- if $r.SourceURL}}
   {{$r.SourceURL}}{{end}}
{{end}}{{else}}Don't let it go to waste!
{{end}}
--
Shramba, your food inventory
`))

// RenderMessage renders the WhatsApp body of a reminder.
func RenderMessage(r Reminder) (string, error) {
	return execute(messageTmpl, limitRecipes(r))
}

// RenderEmail renders the subject and plain-text body of a reminder email.
func RenderEmail(r Reminder) (subject, body string, err error) {
	r = limitRecipes(r)
	if subject, err = execute(subjectTmpl, r); err != nil {
		return "", "", err
	}
	if body, err = execute(emailTmpl, r); err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func limitRecipes(r Reminder) Reminder {
	if len(r.Recipes) > MaxRecipes {
		r.Recipes = r.Recipes[:MaxRecipes]
	}
	return r
}

func execute(t *template.Template, r Reminder) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
