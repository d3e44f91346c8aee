package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Attachment is a named file taken out of a submission bundle.
type Attachment struct {
	Name    string
	Content []byte
}

// Bundle is a submission mail carrying the applicant sheet, the scanned
// passports and optionally the acceptance list.
type Bundle struct {
	Subject     string
	Applicants  *Attachment
	Passports   *Attachment
	Acceptance  *Attachment
	Attachments []string
}

var ErrIncompleteBundle = errors.New("bundle has no applicant sheet")

// ReadBundle parses a raw .eml message and sorts its attachments by role.
// An HTML body with a table is used as the acceptance list when no
// acceptance attachment is present.
func ReadBundle(raw []byte) (Bundle, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Bundle{}, fmt.Errorf("read envelope: %w", err)
	}

	b := Bundle{Subject: env.GetHeader("Subject")}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		b.Attachments = append(b.Attachments, name)
		a := &Attachment{Name: name, Content: att.Content}

		switch classifyAttachment(name) {
		case roleAcceptance:
			if b.Acceptance == nil {
				b.Acceptance = a
			}
		case roleApplicants:
			if b.Applicants == nil {
				b.Applicants = a
			}
		case rolePassports:
			if b.Passports == nil {
				b.Passports = a
			}
		}
	}

	if b.Acceptance == nil && strings.Contains(strings.ToLower(env.HTML), "<table") {
		b.Acceptance = &Attachment{Name: "body.html", Content: []byte(env.HTML)}
	}
	if b.Applicants == nil {
		return b, ErrIncompleteBundle
	}
	return b, nil
}

type attachmentRole int

const (
	roleUnknown attachmentRole = iota
	roleApplicants
	rolePassports
	roleAcceptance
)

var acceptanceNameProbes = []string{"acceptance", "受理"}

func classifyAttachment(name string) attachmentRole {
	lower := strings.ToLower(name)
	ext := filepath.Ext(lower)
	switch ext {
	case ".pdf":
		return rolePassports
	case ".html", ".htm":
		return roleAcceptance
	case ".csv", ".xlsx", ".xlsm":
		for _, probe := range acceptanceNameProbes {
			if strings.Contains(lower, probe) {
				return roleAcceptance
			}
		}
		return roleApplicants
	default:
		return roleUnknown
	}
}
