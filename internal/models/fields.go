package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names an editable attribute of an inspection record. The names match
// the JSON keys of InspectionRecord.
type Field string

const (
	FieldZone                        Field = "zone"
	FieldMunicipality                Field = "municipality"
	FieldNeighborhood                Field = "neighborhood"
	FieldStreet                      Field = "street"
	FieldNumber                      Field = "number"
	FieldPortal                      Field = "portal"
	FieldStairwell                   Field = "stairwell"
	FieldFloor                       Field = "floor"
	FieldDoor                        Field = "door"
	FieldCustomerName                Field = "customerName"
	FieldCustomerPhone               Field = "customerPhone"
	FieldInspectionType              Field = "inspectionType"
	FieldProgrammingType             Field = "programmingType"
	FieldMDDType                     Field = "mddType"
	FieldMarketSegment               Field = "marketSegment"
	FieldCampaign                    Field = "campaign"
	FieldAssignedCollaboratorCompany Field = "assignedCollaboratorCompany"
	FieldInstaller                   Field = "installer"
	FieldGestor                      Field = "gestor"
	FieldInspector                   Field = "inspector"
	FieldRequestDate                 Field = "requestDate"
	FieldScheduledTime               Field = "scheduledTime"
	FieldStatus                      Field = "status"
	FieldRejectionReason             Field = "rejectionReason"
	FieldObservations                Field = "observations"
	FieldPolicyNumber                Field = "policyNumber"
	FieldCaseNumber                  Field = "caseNumber"
	FieldReprogrammedFromID          Field = "reprogrammedFromId"
	FieldReprogrammedToID            Field = "reprogrammedToId"
	FieldConnectionDate              Field = "connectionDate"
	FieldDataConfirmed               Field = "dataConfirmed"
	FieldSupportObservations         Field = "supportObservations"
	FieldRejectionType               Field = "rejectionType"
	FieldRejectionReasonDetail       Field = "rejectionReasonDetail"
)

// Mode is the form mode a field is evaluated in.
type Mode string

const (
	ModeNew  Mode = "NEW"
	ModeEdit Mode = "EDIT"
	ModeView Mode = "VIEW"
)

type fieldSpec struct {
	name  Field
	date  bool
	value func(*InspectionRecord) string
}

// fieldSpecs is the form declaration order. History entries and editability
// maps follow it.
var fieldSpecs = []fieldSpec{
	{name: FieldZone, value: func(r *InspectionRecord) string { return string(r.Zone) }},
	{name: FieldMunicipality, value: func(r *InspectionRecord) string { return r.Municipality }},
	{name: FieldNeighborhood, value: func(r *InspectionRecord) string { return r.Neighborhood }},
	{name: FieldStreet, value: func(r *InspectionRecord) string { return r.Street }},
	{name: FieldNumber, value: func(r *InspectionRecord) string { return r.Number }},
	{name: FieldPortal, value: func(r *InspectionRecord) string { return r.Portal }},
	{name: FieldStairwell, value: func(r *InspectionRecord) string { return r.Stairwell }},
	{name: FieldFloor, value: func(r *InspectionRecord) string { return r.Floor }},
	{name: FieldDoor, value: func(r *InspectionRecord) string { return r.Door }},
	{name: FieldCustomerName, value: func(r *InspectionRecord) string { return r.CustomerName }},
	{name: FieldCustomerPhone, value: func(r *InspectionRecord) string { return r.CustomerPhone }},
	{name: FieldInspectionType, value: func(r *InspectionRecord) string { return r.InspectionType }},
	{name: FieldProgrammingType, value: func(r *InspectionRecord) string { return r.ProgrammingType }},
	{name: FieldMDDType, value: func(r *InspectionRecord) string { return r.MDDType }},
	{name: FieldMarketSegment, value: func(r *InspectionRecord) string { return r.MarketSegment }},
	{name: FieldCampaign, value: func(r *InspectionRecord) string { return r.Campaign }},
	{name: FieldAssignedCollaboratorCompany, value: func(r *InspectionRecord) string { return r.AssignedCollaboratorCompany }},
	{name: FieldInstaller, value: func(r *InspectionRecord) string { return r.Installer }},
	{name: FieldGestor, value: func(r *InspectionRecord) string { return r.Gestor }},
	{name: FieldInspector, value: func(r *InspectionRecord) string { return r.Inspector }},
	{name: FieldRequestDate, date: true, value: func(r *InspectionRecord) string { return formatDate(r.RequestDate) }},
	{name: FieldScheduledTime, value: func(r *InspectionRecord) string { return r.ScheduledTime }},
	{name: FieldStatus, value: func(r *InspectionRecord) string { return string(r.Status) }},
	{name: FieldRejectionReason, value: func(r *InspectionRecord) string { return r.RejectionReason }},
	{name: FieldObservations, value: func(r *InspectionRecord) string { return r.Observations }},
	{name: FieldPolicyNumber, value: func(r *InspectionRecord) string { return r.PolicyNumber }},
	{name: FieldCaseNumber, value: func(r *InspectionRecord) string { return r.CaseNumber }},
	{name: FieldReprogrammedFromID, value: func(r *InspectionRecord) string { return r.ReprogrammedFromID }},
	{name: FieldReprogrammedToID, value: func(r *InspectionRecord) string { return r.ReprogrammedToID }},
	{name: FieldConnectionDate, date: true, value: func(r *InspectionRecord) string { return formatDate(r.ConnectionDate) }},
	{name: FieldDataConfirmed, value: func(r *InspectionRecord) string { return strconv.FormatBool(r.DataConfirmed) }},
	{name: FieldSupportObservations, value: func(r *InspectionRecord) string { return r.SupportObservations }},
	{name: FieldRejectionType, value: func(r *InspectionRecord) string { return r.RejectionType }},
	{name: FieldRejectionReasonDetail, value: func(r *InspectionRecord) string { return r.RejectionReasonDetail }},
}

var fieldIndex = func() map[Field]int {
	idx := make(map[Field]int, len(fieldSpecs))
	for i, spec := range fieldSpecs {
		idx[spec.name] = i
	}
	return idx
}()

// Fields returns every field in form declaration order.
func Fields() []Field {
	out := make([]Field, len(fieldSpecs))
	for i, spec := range fieldSpecs {
		out[i] = spec.name
	}
	return out
}

// IsKnown reports whether f is a declared field.
func (f Field) IsKnown() bool {
	_, ok := fieldIndex[f]
	return ok
}

// IsDate reports whether the field holds a calendar date.
func (f Field) IsDate() bool {
	i, ok := fieldIndex[f]
	return ok && fieldSpecs[i].date
}

// Order returns the declaration position of f, or -1 when unknown.
func (f Field) Order() int {
	if i, ok := fieldIndex[f]; ok {
		return i
	}
	return -1
}

// FieldValue renders the value of f on rec. Dates render as YYYY-MM-DD and
// absent values render as the empty string.
func FieldValue(rec *InspectionRecord, f Field) string {
	if rec == nil {
		return ""
	}
	i, ok := fieldIndex[f]
	if !ok {
		return ""
	}
	return fieldSpecs[i].value(rec)
}

// SetFieldValue stores a rendered value into f on rec. It is the inverse of
// FieldValue: dates parse as YYYY-MM-DD and an empty value clears them.
func SetFieldValue(rec *InspectionRecord, f Field, value string) error {
	if rec == nil {
		return fmt.Errorf("cannot set %s on a nil record", f)
	}
	if f.IsDate() {
		t, err := ParseDate(value)
		if err != nil {
			return err
		}
		switch f {
		case FieldRequestDate:
			rec.RequestDate = t
		case FieldConnectionDate:
			rec.ConnectionDate = t
		}
		return nil
	}
	switch f {
	case FieldZone:
		rec.Zone = Zone(value)
	case FieldStatus:
		rec.Status = InspectionStatus(value)
	case FieldDataConfirmed:
		v := strings.TrimSpace(value)
		if v == "" {
			rec.DataConfirmed = false
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f, value, err)
		}
		rec.DataConfirmed = b
	default:
		ptr := stringField(rec, f)
		if ptr == nil {
			return fmt.Errorf("unknown field %q", f)
		}
		*ptr = value
	}
	return nil
}

func stringField(rec *InspectionRecord, f Field) *string {
	switch f {
	case FieldMunicipality:
		return &rec.Municipality
	case FieldNeighborhood:
		return &rec.Neighborhood
	case FieldStreet:
		return &rec.Street
	case FieldNumber:
		return &rec.Number
	case FieldPortal:
		return &rec.Portal
	case FieldStairwell:
		return &rec.Stairwell
	case FieldFloor:
		return &rec.Floor
	case FieldDoor:
		return &rec.Door
	case FieldCustomerName:
		return &rec.CustomerName
	case FieldCustomerPhone:
		return &rec.CustomerPhone
	case FieldInspectionType:
		return &rec.InspectionType
	case FieldProgrammingType:
		return &rec.ProgrammingType
	case FieldMDDType:
		return &rec.MDDType
	case FieldMarketSegment:
		return &rec.MarketSegment
	case FieldCampaign:
		return &rec.Campaign
	case FieldAssignedCollaboratorCompany:
		return &rec.AssignedCollaboratorCompany
	case FieldInstaller:
		return &rec.Installer
	case FieldGestor:
		return &rec.Gestor
	case FieldInspector:
		return &rec.Inspector
	case FieldScheduledTime:
		return &rec.ScheduledTime
	case FieldRejectionReason:
		return &rec.RejectionReason
	case FieldObservations:
		return &rec.Observations
	case FieldPolicyNumber:
		return &rec.PolicyNumber
	case FieldCaseNumber:
		return &rec.CaseNumber
	case FieldReprogrammedFromID:
		return &rec.ReprogrammedFromID
	case FieldReprogrammedToID:
		return &rec.ReprogrammedToID
	case FieldSupportObservations:
		return &rec.SupportObservations
	case FieldRejectionType:
		return &rec.RejectionType
	case FieldRejectionReasonDetail:
		return &rec.RejectionReasonDetail
	}
	return nil
}

// AddressDetailFields are the fields that relocate a job.
var AddressDetailFields = []Field{
	FieldMunicipality, FieldNeighborhood, FieldStreet, FieldNumber,
	FieldPortal, FieldStairwell, FieldFloor, FieldDoor,
}

// TimeGatedFields lock for collaborators close to the scheduled instant.
var TimeGatedFields = []Field{
	FieldRequestDate, FieldScheduledTime, FieldStreet, FieldNumber,
	FieldMunicipality, FieldNeighborhood,
}

// In reports whether f is one of the given fields.
func (f Field) In(fields ...Field) bool {
	for _, candidate := range fields {
		if f == candidate {
			return true
		}
	}
	return false
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
