package vcard

import (
	"errors"
	"io"
	"strconv"
	"strings"

	govcard "github.com/emersion/go-vcard"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Custom properties and parameters carried alongside the RFC 6350 set.
const (
	propSecondFamily = "X-SECOND-FAMILY"
	propDate         = "X-DATE"
	paramLabel       = "LABEL"
	paramRemind      = "X-REMIND"
)

// Decode parses a single vCard record into a ContactRecord.
// Mandatory structure: the BEGIN/END envelope, VERSION, and a non-empty
// UID. Anything else missing decodes to zero values.
func Decode(text string) (*domain.ContactRecord, error) {
	dec := govcard.NewDecoder(strings.NewReader(text))
	card, err := dec.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Reason: "no BEGIN:VCARD/END:VCARD envelope"}
		}
		return nil, decodeErrorf("parse: %v", err)
	}

	if card.Value(govcard.FieldVersion) == "" {
		return nil, &DecodeError{Reason: "missing VERSION"}
	}

	uid := strings.TrimSpace(unescapeValue(card.Value(govcard.FieldUID)))
	if uid == "" {
		return nil, &DecodeError{Reason: "missing UID"}
	}

	rec := &domain.ContactRecord{UID: uid}

	if f := card.Get(govcard.FieldName); f != nil {
		// N components: family; given; middle; prefix; suffix.
		parts := splitComponents(f.Value)
		rec.Name = domain.NameParts{
			Family: component(parts, 0),
			Given:  component(parts, 1),
			Middle: component(parts, 2),
			Prefix: component(parts, 3),
			Suffix: component(parts, 4),
		}
	}
	rec.Name.SecondFamily = unescapeValue(card.Value(propSecondFamily))
	rec.Nickname = unescapeValue(card.Value(govcard.FieldNickname))

	rec.Phones = typedValues(card[govcard.FieldTelephone])
	rec.Emails = typedValues(card[govcard.FieldEmail])
	rec.Links = typedValues(card[govcard.FieldURL])
	rec.Messaging = typedValues(card[govcard.FieldIMPP])

	for _, f := range card[govcard.FieldAddress] {
		parts := splitComponents(f.Value)
		rec.Addresses = append(rec.Addresses, domain.PostalAddress{
			Type:       fieldType(f),
			POBox:      component(parts, 0),
			Extended:   component(parts, 1),
			Street:     component(parts, 2),
			Locality:   component(parts, 3),
			Region:     component(parts, 4),
			PostalCode: component(parts, 5),
			Country:    component(parts, 6),
		})
	}

	// ORG is a semicolon list of organizational units; the application
	// models only the top-level one.
	if f := card.Get(govcard.FieldOrganization); f != nil {
		rec.Organization = component(splitComponents(f.Value), 0)
	}
	rec.Title = unescapeValue(card.Value(govcard.FieldTitle))
	rec.Note = unescapeValue(card.Value(govcard.FieldNote))
	rec.PhotoRef = unescapeValue(card.Value(govcard.FieldPhoto))

	for _, f := range card[govcard.FieldBirthday] {
		rec.Dates = append(rec.Dates, importantDate(f, domain.DateLabelBirthday))
	}
	for _, f := range card[govcard.FieldAnniversary] {
		rec.Dates = append(rec.Dates, importantDate(f, domain.DateLabelAnniversary))
	}
	for _, f := range card[propDate] {
		label := unescapeValue(f.Params.Get(paramLabel))
		rec.Dates = append(rec.Dates, importantDate(f, label))
	}

	return rec, nil
}

// typedValues converts a property's field list into ordered TypedValues.
func typedValues(fields []*govcard.Field) []domain.TypedValue {
	if len(fields) == 0 {
		return nil
	}
	out := make([]domain.TypedValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, domain.TypedValue{
			Type:  fieldType(f),
			Value: unescapeValue(f.Value),
		})
	}
	return out
}

// fieldType returns the first TYPE parameter value, as-is.
func fieldType(f *govcard.Field) string {
	return f.Params.Get(govcard.ParamType)
}

func importantDate(f *govcard.Field, label string) domain.ImportantDate {
	d := domain.ImportantDate{
		Label: label,
		Date:  unescapeValue(f.Value),
	}
	if raw := f.Params.Get(paramRemind); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil {
			d.RemindDays = &days
		}
	}
	return d
}

// DecodeBatch splits concatenated vCards and decodes each record
// individually. Malformed records are returned as per-index errors; the
// slices are parallel and always the same length as SplitBatch's output.
func DecodeBatch(text string) ([]*domain.ContactRecord, []error) {
	chunks := SplitBatch(text)
	records := make([]*domain.ContactRecord, len(chunks))
	errs := make([]error, len(chunks))
	for i, chunk := range chunks {
		records[i], errs[i] = Decode(chunk)
	}
	return records, errs
}
