package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeFileName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Resume Final (2).pdf", "resume-final-2.pdf"},
		{"José García CV.pdf", "jose-garcia-cv.pdf"},
		{"résumé.docx", "resume.docx"},
		{"../../etc/passwd", "passwd"},
		{"", "resume"},
		{"no-extension", "no-extension"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SafeFileName(tc.in), "input=%q", tc.in)
	}
}
