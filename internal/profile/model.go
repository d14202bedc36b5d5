// File: internal/profile/model.go
package profile

import (
	"time"
)

// Document is the app-level user record, keyed by Principal id in the
// profile store. Created exactly once per new Principal; mutated
// thereafter only through interest updates.
type Document struct {
	ID              string
	Email           string
	NombreCompleto  string
	NombreUsuario   string
	FechaNacimiento string
	Genero          string
	PhotoURL        string
	Biografia       string
	Intereses       []string
	FechaRegistro   time.Time
	EsInvitado      bool
}

// Fields flattens a Document into the string-keyed field map the
// document store persists.
func (d *Document) Fields() map[string]interface{} {
	intereses := d.Intereses
	if intereses == nil {
		intereses = []string{}
	}
	return map[string]interface{}{
		"email":           d.Email,
		"nombreCompleto":  d.NombreCompleto,
		"nombreUsuario":   d.NombreUsuario,
		"fechaNacimiento": d.FechaNacimiento,
		"genero":          d.Genero,
		"photoUrl":        d.PhotoURL,
		"biografia":       d.Biografia,
		"intereses":       intereses,
		"fechaRegistro":   d.FechaRegistro,
		"esInvitado":      d.EsInvitado,
	}
}

// FromFields rebuilds a Document from a stored field map. Missing or
// mistyped fields fall back to zero values; intereses tolerates both
// []string and []interface{} element encodings.
func FromFields(id string, fields map[string]interface{}) *Document {
	doc := &Document{ID: id}
	doc.Email, _ = fields["email"].(string)
	doc.NombreCompleto, _ = fields["nombreCompleto"].(string)
	doc.NombreUsuario, _ = fields["nombreUsuario"].(string)
	doc.FechaNacimiento, _ = fields["fechaNacimiento"].(string)
	doc.Genero, _ = fields["genero"].(string)
	doc.PhotoURL, _ = fields["photoUrl"].(string)
	doc.Biografia, _ = fields["biografia"].(string)
	doc.EsInvitado, _ = fields["esInvitado"].(bool)

	switch v := fields["intereses"].(type) {
	case []string:
		doc.Intereses = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				doc.Intereses = append(doc.Intereses, s)
			}
		}
	}

	if ts, ok := fields["fechaRegistro"].(time.Time); ok {
		doc.FechaRegistro = ts
	}
	return doc
}
