package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"cellule/internal/domain/registration"
)

// CategoryRegistration tags the admin notification sent for each new registration.
const CategoryRegistration = "registration"

const registrationBody = `{{define "rows"}}Filière: {{.Filiere}}
Année: {{.Annee}}
Téléphone: {{.Telephone}}
Email: {{.Email}}
Intérêt: {{.Interet}}{{end}}`

var registrationHTML = htmltemplate.Must(htmltemplate.New("registration").Parse(`<h2>Nouvelle inscription</h2>
<p>{{.Prenom}} {{.Nom}} vient de s'inscrire le {{.Date}}.</p>
<table>
<tr><td>Filière</td><td>{{.Filiere}}</td></tr>
<tr><td>Année</td><td>{{.Annee}}</td></tr>
<tr><td>Téléphone</td><td>{{.Telephone}}</td></tr>
<tr><td>Email</td><td>{{.Email}}</td></tr>
<tr><td>Intérêt</td><td>{{.Interet}}</td></tr>
</table>
<p>Validez-la depuis le tableau de bord administrateur.</p>`))

var registrationText = texttemplate.Must(texttemplate.New("registration").Parse(registrationBody + `{{.Prenom}} {{.Nom}} vient de s'inscrire le {{.Date}}.

{{template "rows" .}}

Validez-la depuis le tableau de bord administrateur.
`))

// NewRegistrationMessage builds the admin notification for a new registration.
// Replies go to the applicant.
// PRE: to is a non-empty address
func NewRegistrationMessage(reg registration.Registration, to string) (Message, error) {
	var html, text bytes.Buffer
	if err := registrationHTML.Execute(&html, reg); err != nil {
		return Message{}, fmt.Errorf("render registration email: %w", err)
	}
	if err := registrationText.Execute(&text, reg); err != nil {
		return Message{}, fmt.Errorf("render registration email: %w", err)
	}
	return Message{
		To:       []string{to},
		ReplyTo:  reg.Email,
		Subject:  fmt.Sprintf("Nouvelle inscription : %s %s", reg.Prenom, reg.Nom),
		HTML:     html.String(),
		Text:     text.String(),
		Category: CategoryRegistration,
	}, nil
}
