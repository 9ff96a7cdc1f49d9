package carddav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Request bodies are built as strings: encoding/xml cannot emit the
// prefixed namespaces WebDAV servers expect.

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:getetag/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`

func syncCollectionBody(token string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<d:sync-collection xmlns:d="DAV:">
  <d:sync-token>` + xmlEscape(token) + `</d:sync-token>
  <d:sync-level>1</d:sync-level>
  <d:prop>
    <d:getetag/>
  </d:prop>
</d:sync-collection>`
}

func multigetBody(paths []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<card:addressbook-multiget xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:prop>
    <d:getetag/>
    <card:address-data/>
  </d:prop>
`)
	for _, p := range paths {
		b.WriteString("  <d:href>")
		b.WriteString(xmlEscape(p))
		b.WriteString("</d:href>\n")
	}
	b.WriteString(`</card:addressbook-multiget>`)
	return b.String()
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ---------------------------------------------------------------------------
// Multistatus parsing
// ---------------------------------------------------------------------------

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	SyncToken string        `xml:"sync-token"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href string `xml:"href"`
	// Response-level status, set for members reported gone.
	Status    string     `xml:"status"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string `xml:"status"`
	Prop   prop   `xml:"prop"`
}

type prop struct {
	ETag         string       `xml:"getetag"`
	AddressData  string       `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	ResourceType resourceType `xml:"resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// okProp returns the prop of the 200-status propstat, or nil.
func (r *davResponse) okProp() *prop {
	for i := range r.Propstats {
		if statusOK(r.Propstats[i].Status) {
			return &r.Propstats[i].Prop
		}
	}
	return nil
}

func statusOK(status string) bool {
	return strings.Contains(status, " 200 ") || strings.HasSuffix(status, " 200")
}

func parseMultistatus(raw []byte) (*multistatus, error) {
	var ms multistatus
	if err := xml.Unmarshal(raw, &ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}
	return &ms, nil
}
