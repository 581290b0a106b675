package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedEntity marks an entity variant no engine knows how to handle.
// Engines panic with it: reaching it is a programming error, not bad input.
var ErrUnsupportedEntity = errors.New("unsupported entity type")

// EntityKind discriminates the Entity variants on the wire.
type EntityKind string

const (
	KindIndividual  EntityKind = "individual"
	KindCompany     EntityKind = "company"
	KindInstitution EntityKind = "institution"
)

// Entity is the subject of an assessment. It is a closed set:
// only *Individual, *Company and *Institution implement it.
type Entity interface {
	EntityID() string
	LastUpdated() time.Time
	Kind() EntityKind
	DisplayName() string

	isEntity()
}

// EntityBase holds the fields every entity variant carries.
type EntityBase struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b EntityBase) EntityID() string       { return b.ID }
func (b EntityBase) LastUpdated() time.Time { return b.UpdatedAt }

// EmploymentStatus of an individual applicant.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
)

// Individual is a natural person applying for credit.
type Individual struct {
	EntityBase
	FullName         string           `json:"full_name"`
	NationalID       string           `json:"national_id"`
	DateOfBirth      time.Time        `json:"date_of_birth"`
	MonthlyIncome    float64          `json:"monthly_income"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
	Employer         string           `json:"employer,omitempty"`
	Email            string           `json:"email,omitempty"`
	Phone            string           `json:"phone,omitempty"`
}

func (*Individual) Kind() EntityKind      { return KindIndividual }
func (i *Individual) DisplayName() string { return i.FullName }
func (*Individual) isEntity()             {}

// Age returns the age in whole years at the given instant.
func (i *Individual) Age(at time.Time) int {
	if i.DateOfBirth.IsZero() {
		return 0
	}
	dob := i.DateOfBirth
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	return years
}

// Company is a registered business.
type Company struct {
	EntityBase
	LegalName          string    `json:"legal_name"`
	RegistrationNumber string    `json:"registration_number"`
	Sector             string    `json:"sector"`
	LegalForm          string    `json:"legal_form"`
	EstablishedAt      time.Time `json:"established_at"`
	AnnualRevenue      float64   `json:"annual_revenue"`
	EmployeeCount      int       `json:"employee_count"`
}

func (*Company) Kind() EntityKind      { return KindCompany }
func (c *Company) DisplayName() string { return c.LegalName }
func (*Company) isEntity()             {}

// YearsInBusiness returns fractional years since establishment.
func (c *Company) YearsInBusiness(at time.Time) float64 {
	if c.EstablishedAt.IsZero() || at.Before(c.EstablishedAt) {
		return 0
	}
	return at.Sub(c.EstablishedAt).Hours() / (24 * 365.25)
}

// Institution is a regulated financial institution.
type Institution struct {
	EntityBase
	Name                 string  `json:"name"`
	LicenseNumber        string  `json:"license_number"`
	Regulator            string  `json:"regulator"`
	InstitutionType      string  `json:"institution_type"`
	CapitalAdequacyRatio float64 `json:"capital_adequacy_ratio"` // percent
	RiskRating           string  `json:"risk_rating"`
	TotalAssets          float64 `json:"total_assets"`
}

func (*Institution) Kind() EntityKind      { return KindInstitution }
func (i *Institution) DisplayName() string { return i.Name }
func (*Institution) isEntity()             {}

// DecodeEntity decodes a JSON object discriminated by its "type" field.
func DecodeEntity(data []byte) (Entity, error) {
	var head struct {
		Type EntityKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}

	var entity Entity
	switch head.Type {
	case KindIndividual:
		entity = &Individual{}
	case KindCompany:
		entity = &Company{}
	case KindInstitution:
		entity = &Institution{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEntity, head.Type)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	if entity.EntityID() == "" {
		return nil, fmt.Errorf("decode %s: id is required", head.Type)
	}
	return entity, nil
}

// EncodeEntity is the inverse of DecodeEntity.
func EncodeEntity(e Entity) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(e.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// UnsupportedEntity panics for an entity variant outside the closed set.
func UnsupportedEntity(e Entity) {
	panic(fmt.Errorf("%w: %T", ErrUnsupportedEntity, e))
}
