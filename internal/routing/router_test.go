package routing

import (
	"testing"

	"github.com/spec-kit/campus-desk/internal/domain"
)

func TestForClosedSet(t *testing.T) {
	cases := []struct {
		requestType domain.RequestType
		department  domain.Department
		prefix      string
		ack         string
	}{
		{domain.RequestTypeFeeReceipt, domain.DepartmentAccounts, "FIN", "Fee receipt request forwarded to Accounts Office."},
		{domain.RequestTypeBonafide, domain.DepartmentAdmin, "ADM", "Bonafide request forwarded to Admin Office."},
		{domain.RequestTypeWifi, domain.DepartmentIT, "IT", "Support ticket forwarded to IT Helpdesk."},
		{domain.RequestTypeLab, domain.DepartmentIT, "IT", "Support ticket forwarded to IT Helpdesk."},
		{domain.RequestTypeIDCard, domain.DepartmentIT, "IT", "Support ticket forwarded to IT Helpdesk."},
	}
	for _, tc := range cases {
		t.Run(string(tc.requestType), func(t *testing.T) {
			r := For(tc.requestType)
			if r.Department != tc.department || r.Prefix != tc.prefix || r.Acknowledgment != tc.ack {
				t.Fatalf("unexpected route %+v", r)
			}
			if !Known(tc.requestType) {
				t.Fatalf("%s should be known", tc.requestType)
			}
		})
	}
}

func TestForDefault(t *testing.T) {
	for _, rt := range []domain.RequestType{"", "TRANSCRIPT", "fee_receipt"} {
		r := For(rt)
		if r.Department != domain.DepartmentAdmin || r.Prefix != "GEN" || r.Acknowledgment != "Request received." {
			t.Fatalf("unexpected default route for %q: %+v", rt, r)
		}
		if Known(rt) {
			t.Fatalf("%q should not be known", rt)
		}
	}
}
