package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := renderTemplate("subject", defaultEnrollmentSubject, enrollmentMailData{
		FullName:    "Sara",
		CourseTitle: "Intro to Go",
	})
	require.NoError(t, err)
	assert.Equal(t, "You are enrolled: Intro to Go", out)
}

func TestRenderTemplateBody(t *testing.T) {
	out, err := renderTemplate("body", defaultEnrollmentBody, enrollmentMailData{
		FullName:    "Sara",
		CourseTitle: "Intro to Go",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Hi Sara")
	assert.Contains(t, out, "<b>Intro to Go</b>")
}

func TestRenderTemplateBadSyntax(t *testing.T) {
	_, err := renderTemplate("subject", "{{.Broken", enrollmentMailData{})
	assert.Error(t, err)
}
