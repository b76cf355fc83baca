// Package document renders the final legal document text from the business
// record and the response audit log.
package document

import (
	"strings"
	"time"

	"github.com/mzampetti/complybot/internal/record"
	"github.com/mzampetti/complybot/internal/responses"
)

// Type selects which document to assemble.
type Type string

const (
	TypePrivacy Type = "privacy"
	TypeTerms   Type = "terms"
)

const (
	placeholderName         = "Your Business"
	placeholderEmail        = "contact@yourbusiness.com"
	placeholderJurisdiction = "Your Jurisdiction"
	placeholderWebsite      = "your website"
	placeholderServices     = "the services we provide"
)

// Assemble renders the document. It is a pure function of its arguments:
// download, copy, and email all call it and must produce identical text.
// For each templated field the latest response tagged with that field wins,
// then the record value, then a fixed placeholder.
func Assemble(t Type, rec record.Business, log []responses.Response) string {
	switch t {
	case TypeTerms:
		return assembleTerms(rec, log)
	default:
		return assemblePrivacy(rec, log)
	}
}

func assemblePrivacy(rec record.Business, log []responses.Response) string {
	name := resolve(log, record.FieldName, rec.Name, placeholderName)
	email := resolve(log, record.FieldEmail, rec.Email, placeholderEmail)
	jurisdiction := resolve(log, record.FieldJurisdiction, rec.Jurisdiction, placeholderJurisdiction)
	coppa := resolveCoppa(log, rec)

	var b strings.Builder
	b.WriteString("PRIVACY POLICY FOR " + strings.ToUpper(name) + "\n")
	if date, ok := latestDate(log); ok {
		b.WriteString("Last updated: " + date + "\n")
	}
	b.WriteString("\nThis Privacy Policy describes how " + name +
		" (\"we\", \"us\", or \"our\") collects, uses, and discloses your personal information when you visit our website or use our services.\n")

	b.WriteString("\nINFORMATION WE COLLECT\n")
	b.WriteString("We collect personal information that you provide directly to us, such as your name, email address, and contact information when you contact us or sign up for our services.\n")

	if coppa {
		b.WriteString("\nCHILDREN'S PRIVACY\n")
		b.WriteString("Our services are directed to children under the age of 13. In compliance with the Children's Online Privacy Protection Act (COPPA), we obtain verifiable parental consent before collecting or using any personal information from children under 13. We collect limited personal information from children necessary for participation in our activities. Parents or guardians can review their child's information, have it deleted, and refuse further collection by contacting us at " + email + ".\n")
	}

	b.WriteString("\nHOW WE USE YOUR INFORMATION\n")
	b.WriteString("We use your information to provide and improve our services, communicate with you, and comply with our legal obligations.\n")

	b.WriteString("\nCONTACT INFORMATION\n")
	b.WriteString("For questions about this privacy policy or our data practices, please contact us at: " + email + "\n")

	b.WriteString("\nLEGAL JURISDICTION\n")
	b.WriteString("This privacy policy is governed by the laws of " + jurisdiction + ".\n")

	b.WriteString("\nThis is a simplified template. For a complete privacy policy, please consult with a legal professional.\n")
	return b.String()
}

func assembleTerms(rec record.Business, log []responses.Response) string {
	name := resolve(log, record.FieldName, rec.Name, placeholderName)
	email := resolve(log, record.FieldEmail, rec.Email, placeholderEmail)
	jurisdiction := resolve(log, record.FieldJurisdiction, rec.Jurisdiction, placeholderJurisdiction)
	website := resolve(log, record.FieldWebsite, rec.Website, placeholderWebsite)
	services := resolve(log, record.FieldServices, rec.Get(record.FieldServices), placeholderServices)

	var b strings.Builder
	b.WriteString("TERMS OF USE FOR " + strings.ToUpper(name) + "\n")
	if date, ok := latestDate(log); ok {
		b.WriteString("Last updated: " + date + "\n")
	}
	b.WriteString("\nACCEPTANCE OF TERMS\n")
	b.WriteString("By accessing " + website + " or using the services of " + name +
		", you agree to be bound by these Terms of Use. If you do not agree, please do not use the site or our services.\n")

	b.WriteString("\nSERVICES\n")
	b.WriteString(name + " provides the following services: " + services + ". We may change or discontinue any service at any time without notice.\n")

	b.WriteString("\nUSE OF THE WEBSITE\n")
	b.WriteString("You agree to use " + website + " only for lawful purposes and in a way that does not infringe the rights of others or restrict their use of the site.\n")

	b.WriteString("\nLIMITATION OF LIABILITY\n")
	b.WriteString(name + " is not liable for any indirect, incidental, or consequential damages arising from your use of the site or our services, to the maximum extent permitted by the laws of " + jurisdiction + ".\n")

	b.WriteString("\nCONTACT INFORMATION\n")
	b.WriteString("For questions about these terms, please contact us at: " + email + "\n")

	b.WriteString("\nThis is a simplified template. For complete terms, please consult with a legal professional.\n")
	return b.String()
}

func resolve(log []responses.Response, field record.Field, recordValue, placeholder string) string {
	if r := responses.Latest(log, string(field)); r != nil && strings.TrimSpace(r.Answer) != "" {
		return r.Answer
	}
	if strings.TrimSpace(recordValue) != "" {
		return recordValue
	}
	return placeholder
}

// resolveCoppa resolves the regulatory flag: latest tagged response wins,
// else the record default.
func resolveCoppa(log []responses.Response, rec record.Business) bool {
	if r := responses.Latest(log, string(record.FieldCoppa)); r != nil {
		return record.TruthyAnswer(r.Answer)
	}
	return rec.CoppaCompliance
}

// latestDate derives the header date from the newest log entry so the
// output stays a pure function of the inputs.
func latestDate(log []responses.Response) (string, bool) {
	var max time.Time
	for _, r := range log {
		if r.Timestamp.After(max) {
			max = r.Timestamp
		}
	}
	if max.IsZero() {
		return "", false
	}
	return max.UTC().Format("January 2, 2006"), true
}
