package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
)

func TestSendgridService_prepare(t *testing.T) {
	conf := testConf()
	conf.SendgridAPIKey = "key"
	core.ParseEmailTemplates(conf, appfs.FS, appfs.EmailTemplatesDir, nopLogger{})
	svc := NewSendgridService(conf, nopLogger{})

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Darasa", Address: "noreply@darasa.test"}},
		Bcc:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}, {Name: "John", Address: "john@test.cd"}},
		Subject:      "[CS101] Exam moved",
		TemplateName: "course_notice",
		TemplateData: map[string]interface{}{
			"CourseID":    "c1",
			"CourseTitle": "Intro",
			"CourseCode":  "CS101",
			"Body":        "The exam is on Friday.",
		},
	}
	require.NoError(t, msg.Render())
	m := svc.prepare(*msg)

	assert.Equal(t, "Darasa", m.From.Name)
	assert.Equal(t, "noreply@darasa.test", m.From.Address)

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Darasa] [CS101] Exam moved", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "noreply@darasa.test", p.To[0].Address)
	assert.Empty(t, p.CC)
	require.Len(t, p.BCC, 2)
	assert.Equal(t, "jane@test.cd", p.BCC[0].Address)
	assert.Equal(t, "John", p.BCC[1].Name)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Contains(t, m.Content[0].Value, "Intro (CS101)")
	assert.Contains(t, m.Content[0].Value, "The exam is on Friday.")
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Contains(t, m.Content[1].Value, "http://localhost:3000/courses/c1")
	assert.Empty(t, m.Attachments)
}
