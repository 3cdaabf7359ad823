package notify

import (
	"bytes"
	htmltpl "html/template"
	texttpl "text/template"
	"time"
)

// CodeVars son las variables del mensaje de código OTP.
type CodeVars struct {
	Code    string
	AppName string
	TTL     time.Duration
}

func (v CodeVars) Minutes() int { return int(v.TTL.Round(time.Minute) / time.Minute) }

const codeSubject = "Your verification code"

var (
	codeText = texttpl.Must(texttpl.New("code_txt").Parse(
		`Your {{with .AppName}}{{.}} {{end}}verification code is {{.Code}}. It expires in {{.Minutes}} minutes.`))

	codeHTML = htmltpl.Must(htmltpl.New("code_html").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Your {{with .AppName}}<strong>{{.}}</strong> {{end}}verification code is:</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>
</body></html>`))
)

// CodeMessage arma el mensaje OTP para to. El HTML solo lo usa el gateway
// de email; SMS manda Body.
func CodeMessage(to string, v CodeVars) (Message, error) {
	var txt, html bytes.Buffer
	if err := codeText.Execute(&txt, v); err != nil {
		return Message{}, err
	}
	if err := codeHTML.Execute(&html, v); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: codeSubject, Body: txt.String(), HTML: html.String()}, nil
}
