package discovery

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Document is a parsed WOPI discovery document.
type Document struct {
	XMLName  xml.Name  `xml:"wopi-discovery"`
	NetZones []NetZone `xml:"net-zone"`
	ProofKey *ProofKey `xml:"proof-key"`
}

// NetZone groups the applications reachable from one network zone.
type NetZone struct {
	Name string `xml:"name,attr"`
	Apps []App  `xml:"app"`
}

// App is a client application (Word, Excel, ...).
type App struct {
	Name       string   `xml:"name,attr"`
	FavIconURL string   `xml:"favIconUrl,attr"`
	Actions    []Action `xml:"action"`
}

// Action is one operation an application offers for an extension.
type Action struct {
	Name    string `xml:"name,attr"`
	Ext     string `xml:"ext,attr"`
	URLSrc  string `xml:"urlsrc,attr"`
	Default bool   `xml:"default,attr"`
}

// ProofKey carries the client's current and previous proof keys.
type ProofKey struct {
	Value       string `xml:"value,attr"`
	Modulus     string `xml:"modulus,attr"`
	Exponent    string `xml:"exponent,attr"`
	OldValue    string `xml:"oldvalue,attr"`
	OldModulus  string `xml:"oldmodulus,attr"`
	OldExponent string `xml:"oldexponent,attr"`
}

// Parse decodes a discovery document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse discovery document: %w", err)
	}
	if len(doc.NetZones) == 0 {
		return nil, fmt.Errorf("discovery document has no net-zone")
	}
	return &doc, nil
}

// Extensions returns the lower-cased extensions, with leading dot, for which
// any application offers an action. Sorted.
func (d *Document) Extensions() []string {
	seen := make(map[string]struct{})
	for _, zone := range d.NetZones {
		for _, app := range zone.Apps {
			for _, action := range app.Actions {
				if action.Ext == "" {
					continue
				}
				seen["."+strings.ToLower(strings.TrimPrefix(action.Ext, "."))] = struct{}{}
			}
		}
	}

	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
