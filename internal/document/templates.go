package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spec-kit/campus-desk/internal/domain"
)

const (
	defaultFeePurpose      = "Semester Fees"
	defaultBonafidePurpose = "for official purposes"
	dateLayout             = "02 Jan 2006"
)

var bonafidePreamble = regexp.MustCompile(`(?i)^\s*(i\s+need\s+(a|an)\s+)?bonafide\s+certificate\s*`)

type blockKind int

const (
	blockTitle blockKind = iota
	blockHeading
	blockField
	blockParagraph
	blockEmphasis
	blockGap
	blockSignature
)

type block struct {
	kind  blockKind
	label string
	text  string
}

// content is the layout-free body of a document.
type content struct {
	title  string
	blocks []block
}

// Text flattens the document into plain lines, mostly for inspection in tests.
func (c content) Text() string {
	var b strings.Builder
	b.WriteString(c.title)
	for _, blk := range c.blocks {
		switch blk.kind {
		case blockGap:
			continue
		case blockField:
			fmt.Fprintf(&b, "\n%s: %s", blk.label, blk.text)
		default:
			b.WriteString("\n" + blk.text)
		}
	}
	return b.String()
}

// subject is who the document is issued to.
type subject struct {
	name       string
	studentID  string
	department string
}

func subjectFor(ticket *domain.Ticket, user *domain.User) subject {
	s := subject{name: ticket.StudentName, studentID: ticket.StudentID, department: ticket.Department}
	if user != nil {
		if user.Name != "" {
			s.name = user.Name
		}
		if user.StudentID != "" {
			s.studentID = user.StudentID
		}
		if user.Department != "" {
			s.department = user.Department
		}
	}
	if s.studentID == "" {
		s.studentID = "N/A"
	}
	if s.department == "" {
		s.department = "General"
	}
	return s
}

// CleanPurpose strips a leading "I need a bonafide certificate" and falls back to a
// generic clause when too little remains.
func CleanPurpose(purpose string) string {
	cleaned := strings.TrimSpace(bonafidePreamble.ReplaceAllString(purpose, ""))
	if len(cleaned) < 3 {
		return defaultBonafidePurpose
	}
	return cleaned
}

func buildContent(ticket *domain.Ticket, user *domain.User, issuer issuer, now time.Time) content {
	if ticket.RequestType == domain.RequestTypeFeeReceipt {
		return buildFeeReceipt(ticket, subjectFor(ticket, user), issuer, now)
	}
	return buildBonafide(ticket, subjectFor(ticket, user), issuer, now)
}

func buildFeeReceipt(ticket *domain.Ticket, s subject, issuer issuer, now time.Time) content {
	purpose := strings.TrimSpace(ticket.Purpose)
	if purpose == "" {
		purpose = defaultFeePurpose
	}
	return content{
		title: "FEE RECEIPT",
		blocks: []block{
			{kind: blockHeading, text: issuer.institution},
			{kind: blockGap},
			{kind: blockField, label: "Receipt No", text: ticket.ID},
			{kind: blockField, label: "Date", text: now.Format(dateLayout)},
			{kind: blockGap},
			{kind: blockField, label: "Received from", text: s.name},
			{kind: blockField, label: "Student ID", text: s.studentID},
			{kind: blockField, label: "Department", text: s.department},
			{kind: blockField, label: "Towards", text: purpose},
			{kind: blockGap},
			{kind: blockEmphasis, text: "PAYMENT STATUS: PAID"},
			{kind: blockGap},
			{kind: blockSignature, text: issuer.signatory},
		},
	}
}

func buildBonafide(ticket *domain.Ticket, s subject, issuer issuer, now time.Time) content {
	purpose := CleanPurpose(ticket.Purpose)
	if !strings.HasPrefix(strings.ToLower(purpose), "for ") {
		purpose = "for " + purpose
	}
	return content{
		title: "BONAFIDE CERTIFICATE",
		blocks: []block{
			{kind: blockHeading, text: issuer.institution},
			{kind: blockGap},
			{kind: blockField, label: "Ref", text: ticket.ID},
			{kind: blockField, label: "Date", text: now.Format(dateLayout)},
			{kind: blockGap},
			{kind: blockParagraph, text: fmt.Sprintf(
				"This is to certify that %s (Reg. No: %s) is a bonafide student of the Department of %s at %s.",
				s.name, s.studentID, s.department, issuer.institution)},
			{kind: blockParagraph, text: fmt.Sprintf("This certificate is issued %s.", purpose)},
			{kind: blockGap},
			{kind: blockSignature, text: issuer.signatory},
		},
	}
}
