// Package pdftext extracts plain text from PDF files with unipdf.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ErrNoLicense is returned by New when no unidoc API key is configured.
var ErrNoLicense = errors.New("pdftext: unidoc license key not configured")

var licenseOnce sync.Once
var licenseErr error

// Extractor reads every page of a PDF and joins the page texts with newlines.
type Extractor struct{}

// New registers the metered license key with unipdf and returns an
// extractor. unipdf keeps the license process-wide, so only the first key
// registered takes effect.
func New(apiKey string) (*Extractor, error) {
	if apiKey == "" {
		return nil, ErrNoLicense
	}
	licenseOnce.Do(func() {
		licenseErr = license.SetMeteredKey(apiKey)
	})
	if licenseErr != nil {
		return nil, fmt.Errorf("pdftext: set license: %w", licenseErr)
	}
	return &Extractor{}, nil
}

// ExtractText opens path and extracts its text.
func (e *Extractor) ExtractText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return e.Extract(f)
}

// Extract extracts the text of a PDF read from r. Pages that fail to
// extract are skipped.
func (e *Extractor) Extract(r io.ReadSeeker) (string, error) {
	pdfReader, err := model.NewPdfReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	enc, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("failed checking encryption: %w", err)
	}
	if enc {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return "", fmt.Errorf("failed to decrypt PDF (empty password): %w", err)
		}
		if !ok {
			return "", fmt.Errorf("PDF appears to be password-protected and cannot be read")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
