package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderName is used when a contact record carries neither name
// parts nor a nickname.
const PlaceholderName = "Unnamed contact"

// NameParts holds the structured components of a contact's name.
type NameParts struct {
	Prefix       string
	Given        string
	Middle       string
	Family       string
	SecondFamily string
	Suffix       string
}

// IsZero returns true if every name component is empty.
func (n NameParts) IsZero() bool {
	return n == NameParts{}
}

// TypedValue is one entry of a multi-value field (phone, email, link,
// messaging handle) tagged with a free-text or enumerated type label.
type TypedValue struct {
	Type  string
	Value string
}

// PostalAddress is a structured postal address with a type label.
// Component names follow the vCard ADR property.
type PostalAddress struct {
	Type       string
	POBox      string
	Extended   string
	Street     string
	Locality   string
	Region     string
	PostalCode string
	Country    string
}

// Standard labels for important dates. Any other label is free text.
const (
	DateLabelBirthday    = "birthday"
	DateLabelAnniversary = "anniversary"
)

// ImportantDate is a labeled date with optional reminder configuration.
// Date is a calendar date in YYYY-MM-DD form; it carries no timezone.
type ImportantDate struct {
	Label string
	Date  string
	// RemindDays is the number of days before the date to remind the
	// user; nil means no reminder is configured.
	RemindDays *int
}

// ContactRecord is the normalized in-memory form of one external contact.
// It is produced by the vcard codec, consumed once by the resolver and
// the reconciliation engine, and never persisted verbatim.
type ContactRecord struct {
	UID      string
	Name     NameParts
	Nickname string

	Phones    []TypedValue
	Emails    []TypedValue
	Addresses []PostalAddress
	Links     []TypedValue
	Messaging []TypedValue

	Organization string
	Title        string
	Note         string
	PhotoRef     string

	Dates []ImportantDate
}

// DisplayName derives the record's display name using the fallback
// chain: joined name parts, else nickname, else PlaceholderName.
func (r *ContactRecord) DisplayName() string {
	if !r.Name.IsZero() {
		parts := []string{
			r.Name.Prefix,
			r.Name.Given,
			r.Name.Middle,
			r.Name.Family,
			r.Name.SecondFamily,
			r.Name.Suffix,
		}
		var nonEmpty []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				nonEmpty = append(nonEmpty, p)
			}
		}
		if len(nonEmpty) > 0 {
			return strings.Join(nonEmpty, " ")
		}
	}
	if nick := strings.TrimSpace(r.Nickname); nick != "" {
		return nick
	}
	return PlaceholderName
}

// Contact is a local contact record. Its UID is the cross-system identity
// key: unique among active records per user, while a soft-deleted
// record's UID may be reclaimed by restoring the record.
type Contact struct {
	ID     uuid.UUID
	UserID uuid.UUID
	UID    string

	DisplayName string
	Name        NameParts
	Nickname    string

	Phones    []TypedValue
	Emails    []TypedValue
	Addresses []PostalAddress
	Links     []TypedValue
	Messaging []TypedValue

	Organization string
	Title        string
	Note         string
	PhotoRef     string

	Dates []ImportantDate

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted returns true if the contact has been soft-deleted.
func (c *Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Record returns the contact's fields as a ContactRecord, the shape the
// codec and the reconciliation engine work with.
func (c *Contact) Record() ContactRecord {
	return ContactRecord{
		UID:          c.UID,
		Name:         c.Name,
		Nickname:     c.Nickname,
		Phones:       c.Phones,
		Emails:       c.Emails,
		Addresses:    c.Addresses,
		Links:        c.Links,
		Messaging:    c.Messaging,
		Organization: c.Organization,
		Title:        c.Title,
		Note:         c.Note,
		PhotoRef:     c.PhotoRef,
		Dates:        c.Dates,
	}
}
