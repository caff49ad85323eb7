package service

import (
	"bytes"
	"path/filepath"
	"strings"

	"careergate/internal/upstream"
	dErrors "careergate/pkg/domain-errors"
)

// MaxResumeBytes caps resume uploads at 10 MiB.
const MaxResumeBytes = 10 << 20

var (
	pdfMagic  = []byte("%PDF")
	zipMagic  = []byte("PK\x03\x04") // docx is a zip container
	extension = map[string][]byte{
		".pdf":  pdfMagic,
		".docx": zipMagic,
	}
)

// validateResume checks extension, size and content magic before any network
// call. The declared Content-Type is ignored: clients lie, magic bytes don't.
func validateResume(file upstream.File) error {
	ext := strings.ToLower(filepath.Ext(file.Name))
	magic, ok := extension[ext]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "resume must be a .pdf or .docx file").
			WithField("resume")
	}

	if len(file.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "resume file is empty").
			WithField("resume")
	}
	if len(file.Data) > MaxResumeBytes {
		return dErrors.New(dErrors.CodeValidation, "resume exceeds the 10MB size limit").
			WithField("resume")
	}

	if !bytes.HasPrefix(file.Data, magic) {
		return dErrors.New(dErrors.CodeValidation, "resume content does not match its file type").
			WithField("resume")
	}
	return nil
}
