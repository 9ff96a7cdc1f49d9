package vcard

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Encode serializes a ContactRecord as vCard 4.0 text. The property
// order is fixed and the output ends with CRLF, so equal records always
// produce identical bytes; ContentHash relies on that.
//
// Important dates are grouped by property (BDAY, then ANNIVERSARY, then
// X-DATE), matching the order Decode collects them in.
func Encode(rec *domain.ContactRecord) string {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCARD")
	writeLine(&b, "VERSION:4.0")
	writeProp(&b, "UID", "", rec.UID)

	if !rec.Name.IsZero() {
		n := strings.Join([]string{
			escapeValue(rec.Name.Family),
			escapeValue(rec.Name.Given),
			escapeValue(rec.Name.Middle),
			escapeValue(rec.Name.Prefix),
			escapeValue(rec.Name.Suffix),
		}, ";")
		writeLine(&b, "N:"+n)
	}
	if rec.Name.SecondFamily != "" {
		writeProp(&b, propSecondFamily, "", rec.Name.SecondFamily)
	}
	writeProp(&b, "FN", "", rec.DisplayName())
	if rec.Nickname != "" {
		writeProp(&b, "NICKNAME", "", rec.Nickname)
	}
	if rec.Organization != "" {
		writeProp(&b, "ORG", "", rec.Organization)
	}
	if rec.Title != "" {
		writeProp(&b, "TITLE", "", rec.Title)
	}

	for _, tv := range rec.Phones {
		writeProp(&b, "TEL", tv.Type, tv.Value)
	}
	for _, tv := range rec.Emails {
		writeProp(&b, "EMAIL", tv.Type, tv.Value)
	}
	for _, adr := range rec.Addresses {
		value := strings.Join([]string{
			escapeValue(adr.POBox),
			escapeValue(adr.Extended),
			escapeValue(adr.Street),
			escapeValue(adr.Locality),
			escapeValue(adr.Region),
			escapeValue(adr.PostalCode),
			escapeValue(adr.Country),
		}, ";")
		writeLine(&b, "ADR"+typeParam(adr.Type)+":"+value)
	}
	for _, tv := range rec.Links {
		writeProp(&b, "URL", tv.Type, tv.Value)
	}
	for _, tv := range rec.Messaging {
		writeProp(&b, "IMPP", tv.Type, tv.Value)
	}

	if rec.PhotoRef != "" {
		writeProp(&b, "PHOTO", "", rec.PhotoRef)
	}
	if rec.Note != "" {
		writeProp(&b, "NOTE", "", rec.Note)
	}

	writeDates(&b, rec.Dates, domain.DateLabelBirthday, "BDAY", false)
	writeDates(&b, rec.Dates, domain.DateLabelAnniversary, "ANNIVERSARY", false)
	writeDates(&b, rec.Dates, "", propDate, true)

	writeLine(&b, "END:VCARD")
	return b.String()
}

// ContentHash returns the hex sha256 digest of the record's canonical
// serialized form. Used for change detection against the last-synced
// hash stored on a mapping.
func ContentHash(rec *domain.ContactRecord) string {
	sum := sha256.Sum256([]byte(Encode(rec)))
	return hex.EncodeToString(sum[:])
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

func writeProp(b *strings.Builder, name, typ, value string) {
	writeLine(b, name+typeParam(typ)+":"+escapeValue(value))
}

func typeParam(typ string) string {
	if typ == "" {
		return ""
	}
	return ";TYPE=" + paramValue(typ)
}

// paramValue quotes a parameter value when it contains characters that
// would terminate the parameter.
func paramValue(s string) string {
	if strings.ContainsAny(s, ";:,") {
		return `"` + s + `"`
	}
	return s
}

// writeDates emits the record's dates that belong to the given property.
// For the custom X-DATE property (other == true) every date whose label
// is not one of the standard ones is emitted with a LABEL parameter.
func writeDates(b *strings.Builder, dates []domain.ImportantDate, label, prop string, other bool) {
	for _, d := range dates {
		standard := d.Label == domain.DateLabelBirthday || d.Label == domain.DateLabelAnniversary
		if other {
			if standard {
				continue
			}
		} else if d.Label != label {
			continue
		}

		line := prop
		if other && d.Label != "" {
			line += ";" + paramLabel + "=" + paramValue(d.Label)
		}
		if d.RemindDays != nil {
			line += ";" + paramRemind + "=" + strconv.Itoa(*d.RemindDays)
		}
		writeLine(b, line+":"+escapeValue(d.Date))
	}
}
