package utils

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

// SafeFileName turns an arbitrary upload name into something safe to use as
// an object key and as a Content-Disposition filename (which must be ASCII):
// NFC-normalize, transliterate, then slugify the base name keeping the
// extension.
func SafeFileName(name string) string {
	name = norm.NFC.String(name)
	name = unidecode.Unidecode(name)

	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	safe := slug.Make(base)
	if safe == "" {
		safe = "resume"
	}
	return safe + ext
}
