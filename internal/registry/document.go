// Package registry models the documents accepted by the goods registry and
// how they are read, encoded, and checked before submission.
package registry

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocType identifies the kind of registry document.
type DocType string

const (
	// DocTypeIntroduceGoods introduces locally produced goods into circulation
	DocTypeIntroduceGoods DocType = "LP_INTRODUCE_GOODS"
)

// Document is the payload of a create-document call.
//
// Field names on the wire are lower_snake_case, except the two legacy
// camelCase keys (description.participantInn and importRequest).
type Document struct {
	Description    *Description `json:"description,omitempty" yaml:"description,omitempty"`
	DocID          string       `json:"doc_id,omitempty" yaml:"doc_id,omitempty"`
	DocStatus      string       `json:"doc_status,omitempty" yaml:"doc_status,omitempty"`
	DocType        DocType      `json:"doc_type" yaml:"doc_type"`
	ImportRequest  bool         `json:"importRequest" yaml:"importRequest"`
	OwnerINN       string       `json:"owner_inn,omitempty" yaml:"owner_inn,omitempty"`
	ParticipantINN string       `json:"participant_inn,omitempty" yaml:"participant_inn,omitempty"`
	ProducerINN    string       `json:"producer_inn,omitempty" yaml:"producer_inn,omitempty"`
	ProductionDate *Date        `json:"production_date,omitempty" yaml:"production_date,omitempty"`
	ProductionType string       `json:"production_type,omitempty" yaml:"production_type,omitempty"`
	Products       []Product    `json:"products,omitempty" yaml:"products,omitempty"`
	RegDate        *Date        `json:"reg_date,omitempty" yaml:"reg_date,omitempty"`
	RegNumber      string       `json:"reg_number,omitempty" yaml:"reg_number,omitempty"`
}

// Description carries the participant on whose behalf the document is filed.
type Description struct {
	ParticipantINN string `json:"participantInn" yaml:"participantInn"`
}

// Product is a single item line of a document.
type Product struct {
	CertificateDocument       string `json:"certificate_document,omitempty" yaml:"certificate_document,omitempty"`
	CertificateDocumentDate   *Date  `json:"certificate_document_date,omitempty" yaml:"certificate_document_date,omitempty"`
	CertificateDocumentNumber string `json:"certificate_document_number,omitempty" yaml:"certificate_document_number,omitempty"`
	OwnerINN                  string `json:"owner_inn,omitempty" yaml:"owner_inn,omitempty"`
	ProducerINN               string `json:"producer_inn,omitempty" yaml:"producer_inn,omitempty"`
	ProductionDate            *Date  `json:"production_date,omitempty" yaml:"production_date,omitempty"`
	TNVEDCode                 string `json:"tnved_code,omitempty" yaml:"tnved_code,omitempty"`
	UITCode                   string `json:"uit_code,omitempty" yaml:"uit_code,omitempty"`
	UITUCode                  string `json:"uitu_code,omitempty" yaml:"uitu_code,omitempty"`
}

// Encode returns the wire JSON for the document.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// dateLayout is the ISO calendar date used by the registry.
const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate returns the date for the given year, month and day.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (*Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &Date{t}, nil
}

// String returns the date as "YYYY-MM-DD".
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
