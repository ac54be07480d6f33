// Package models defines server-side data models persisted in the database.
package models

import "time"

// Record is one ciphertext row. The server never sees plaintext; it only
// matches ModuleUserID and Guard against request parameters.
type Record struct {
	ID           string
	Collection   string
	ModuleUserID string
	Payload      []byte
	CipherIV     []byte
	Guard        string
	Created      time.Time
	Updated      time.Time
}

// RecordPatch is a partial update. Nil slices and a nil Guard mean "leave
// the field alone".
type RecordPatch struct {
	Payload  []byte
	CipherIV []byte
	Guard    *string
}

// HasGuard reports whether the patch tries to write the guard field.
func (p RecordPatch) HasGuard() bool {
	return p.Guard != nil
}

// Apply copies the patched fields onto r.
func (p RecordPatch) Apply(r *Record) {
	if p.Payload != nil {
		r.Payload = p.Payload
	}
	if p.CipherIV != nil {
		r.CipherIV = p.CipherIV
	}
	if p.Guard != nil {
		r.Guard = *p.Guard
	}
}
