package models

import (
	"fmt"
	"strings"
	"time"
)

// InspectionStatus is the workflow state of an inspection record. The values
// are the persisted display strings.
type InspectionStatus string

const (
	StatusRegistrada             InspectionStatus = "REGISTRADA"
	StatusConfirmadaPorGE        InspectionStatus = "CONFIRMADA POR GE"
	StatusProgramada             InspectionStatus = "PROGRAMADA"
	StatusEnProceso              InspectionStatus = "EN PROCESO"
	StatusAprobada               InspectionStatus = "APROBADA"
	StatusNoAprobada             InspectionStatus = "NO APROBADA"
	StatusRechazada              InspectionStatus = "RECHAZADA"
	StatusCancelada              InspectionStatus = "CANCELADA"
	StatusConectada              InspectionStatus = "CONECTADA"
	StatusPendienteCorreccion    InspectionStatus = "PENDIENTE CORRECCION"
	StatusFaltaInformacion       InspectionStatus = "FALTA INFORMACION"
	StatusPendienteInformarDatos InspectionStatus = "PENDIENTE INFORMAR DATOS"
)

// ReprogrammedSuffix marks a record that was closed by reprogramming.
const ReprogrammedSuffix = " - REPROGRAMADA"

// Statuses lists every base status in lifecycle order.
var Statuses = []InspectionStatus{
	StatusRegistrada,
	StatusConfirmadaPorGE,
	StatusProgramada,
	StatusEnProceso,
	StatusAprobada,
	StatusNoAprobada,
	StatusRechazada,
	StatusCancelada,
	StatusConectada,
	StatusPendienteCorreccion,
	StatusFaltaInformacion,
	StatusPendienteInformarDatos,
}

// IsReprogrammed reports whether the status carries the reprogrammed suffix.
func (s InspectionStatus) IsReprogrammed() bool {
	return strings.HasSuffix(string(s), ReprogrammedSuffix)
}

// Reprogrammed returns the closed-by-reprogramming variant of s.
func (s InspectionStatus) Reprogrammed() InspectionStatus {
	if s.IsReprogrammed() {
		return s
	}
	return InspectionStatus(string(s) + ReprogrammedSuffix)
}

// IsClosed reports whether the record is frozen for non-admin edits.
func (s InspectionStatus) IsClosed() bool {
	if s.IsReprogrammed() {
		return true
	}
	switch s {
	case StatusAprobada, StatusNoAprobada, StatusRechazada, StatusCancelada, StatusConectada:
		return true
	}
	return false
}

// IsKnown reports whether s is a base status or a reprogrammed variant of one.
func (s InspectionStatus) IsKnown() bool {
	base := InspectionStatus(strings.TrimSuffix(string(s), ReprogrammedSuffix))
	for _, known := range Statuses {
		if base == known {
			return true
		}
	}
	return false
}

// In reports whether s is one of the given statuses.
func (s InspectionStatus) In(statuses ...InspectionStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Channel is the creation channel of a record. It is encoded in the id prefix.
type Channel string

const (
	ChannelIndividual   Channel = "individual"
	ChannelMassive      Channel = "massive"
	ChannelSpecial      Channel = "special"
	ChannelReprogrammed Channel = "reprogrammed"
	ChannelSalesforce   Channel = "salesforce"
)

var channelPrefixes = map[Channel]string{
	ChannelIndividual:   "IND",
	ChannelMassive:      "MAS",
	ChannelSpecial:      "ESP",
	ChannelReprogrammed: "REP",
	ChannelSalesforce:   "SF",
}

// Prefix returns the id prefix for the channel.
func (c Channel) Prefix() string {
	if p, ok := channelPrefixes[c]; ok {
		return p
	}
	return channelPrefixes[ChannelIndividual]
}

// ChannelFromID derives the creation channel from an id prefix.
func ChannelFromID(id string) (Channel, bool) {
	prefix, _, found := strings.Cut(id, "-")
	if !found {
		return "", false
	}
	for ch, p := range channelPrefixes {
		if strings.EqualFold(prefix, p) {
			return ch, true
		}
	}
	return "", false
}

// ProgrammingTypeReprogramacion is forced on records created by reprogramming.
const ProgrammingTypeReprogramacion = "REPROGRAMACION"

// DateLayout is the calendar date format used for request and connection dates.
const DateLayout = "2006-01-02"

// InspectionRecord is the central PES inspection entity.
type InspectionRecord struct {
	ID     string  `json:"id"`
	Zone   Zone    `json:"zone"`
	Origin Channel `json:"origin,omitempty"`

	Municipality string `json:"municipality"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Portal       string `json:"portal,omitempty"`
	Stairwell    string `json:"stairwell,omitempty"`
	Floor        string `json:"floor,omitempty"`
	Door         string `json:"door,omitempty"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	InspectionType  string `json:"inspectionType"`
	ProgrammingType string `json:"programmingType"`
	MDDType         string `json:"mddType,omitempty"`
	MarketSegment   string `json:"marketSegment,omitempty"`
	Campaign        string `json:"campaign,omitempty"`

	AssignedCollaboratorCompany string `json:"assignedCollaboratorCompany"`
	Installer                   string `json:"installer,omitempty"`
	Gestor                      string `json:"gestor,omitempty"`
	Inspector                   string `json:"inspector,omitempty"`

	RequestDate   *time.Time `json:"requestDate,omitempty"`
	ScheduledTime string     `json:"scheduledTime,omitempty"`

	Status          InspectionStatus `json:"status"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	Observations    string           `json:"observations,omitempty"`

	PolicyNumber string `json:"policyNumber,omitempty"`
	CaseNumber   string `json:"caseNumber,omitempty"`

	CreatedAt          time.Time  `json:"createdAt"`
	CreatedBy          string     `json:"createdBy"`
	LastModifiedBy     string     `json:"lastModifiedBy,omitempty"`
	LastModifiedAt     *time.Time `json:"lastModifiedAt,omitempty"`
	ReprogrammedFromID string     `json:"reprogrammedFromId,omitempty"`
	ReprogrammedToID   string     `json:"reprogrammedToId,omitempty"`

	ConnectionDate        *time.Time `json:"connectionDate,omitempty"`
	DataConfirmed         bool       `json:"dataConfirmed"`
	SupportObservations   string     `json:"supportObservations,omitempty"`
	RejectionType         string     `json:"rejectionType,omitempty"`
	RejectionReasonDetail string     `json:"rejectionReasonDetail,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *InspectionRecord) Clone() *InspectionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.RequestDate = cloneTime(r.RequestDate)
	out.LastModifiedAt = cloneTime(r.LastModifiedAt)
	out.ConnectionDate = cloneTime(r.ConnectionDate)
	return &out
}

// ScheduledAt combines RequestDate and ScheduledTime into an instant in loc.
// A missing or malformed time of day means the start of the day. The second
// return value is false when no request date is set.
func (r *InspectionRecord) ScheduledAt(loc *time.Location) (time.Time, bool) {
	if r == nil || r.RequestDate == nil || r.RequestDate.IsZero() {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := r.RequestDate.Date()
	hour, minute := parseTimeOfDay(r.ScheduledTime)
	return time.Date(y, m, d, hour, minute, 0, 0, loc), true
}

// IsSalesforceLineage reports whether the record descends from a Salesforce import.
func (r *InspectionRecord) IsSalesforceLineage() bool {
	if r == nil {
		return false
	}
	if r.Origin == ChannelSalesforce {
		return true
	}
	ch, ok := ChannelFromID(r.ID)
	return ok && ch == ChannelSalesforce
}

func parseTimeOfDay(s string) (int, int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Date builds a calendar date pointer. Handy for fixtures and parsing.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

// InspectionPatch carries a merge write for an existing record. Nil fields
// are left untouched.
type InspectionPatch struct {
	Status                *InspectionStatus `json:"status,omitempty"`
	ReprogrammedToID      *string           `json:"reprogrammedToId,omitempty"`
	ConnectionDate        *time.Time        `json:"connectionDate,omitempty"`
	DataConfirmed         *bool             `json:"dataConfirmed,omitempty"`
	SupportObservations   *string           `json:"supportObservations,omitempty"`
	RejectionType         *string           `json:"rejectionType,omitempty"`
	RejectionReasonDetail *string           `json:"rejectionReasonDetail,omitempty"`
	LastModifiedBy        *string           `json:"lastModifiedBy,omitempty"`
	LastModifiedAt        *time.Time        `json:"lastModifiedAt,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p InspectionPatch) IsEmpty() bool {
	return p.Status == nil && p.ReprogrammedToID == nil && p.ConnectionDate == nil &&
		p.DataConfirmed == nil && p.SupportObservations == nil && p.RejectionType == nil &&
		p.RejectionReasonDetail == nil && p.LastModifiedBy == nil && p.LastModifiedAt == nil
}

// Apply merges the patch into a copy of rec and returns it.
func (p InspectionPatch) Apply(rec *InspectionRecord) *InspectionRecord {
	out := rec.Clone()
	if out == nil {
		return nil
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ReprogrammedToID != nil {
		out.ReprogrammedToID = *p.ReprogrammedToID
	}
	if p.ConnectionDate != nil {
		out.ConnectionDate = cloneTime(p.ConnectionDate)
	}
	if p.DataConfirmed != nil {
		out.DataConfirmed = *p.DataConfirmed
	}
	if p.SupportObservations != nil {
		out.SupportObservations = *p.SupportObservations
	}
	if p.RejectionType != nil {
		out.RejectionType = *p.RejectionType
	}
	if p.RejectionReasonDetail != nil {
		out.RejectionReasonDetail = *p.RejectionReasonDetail
	}
	if p.LastModifiedBy != nil {
		out.LastModifiedBy = *p.LastModifiedBy
	}
	if p.LastModifiedAt != nil {
		out.LastModifiedAt = cloneTime(p.LastModifiedAt)
	}
	return out
}

// InspectionQuery filters records for list and subscribe operations. Zero
// values match everything.
type InspectionQuery struct {
	Zone                        Zone
	Statuses                    []InspectionStatus
	AssignedCollaboratorCompany string
	RequestDateFrom             *time.Time
	RequestDateTo               *time.Time
}

// Matches reports whether rec satisfies the query.
func (q InspectionQuery) Matches(rec *InspectionRecord) bool {
	if rec == nil {
		return false
	}
	if q.Zone != "" && rec.Zone != q.Zone {
		return false
	}
	if len(q.Statuses) > 0 && !rec.Status.In(q.Statuses...) {
		return false
	}
	if q.AssignedCollaboratorCompany != "" && rec.AssignedCollaboratorCompany != q.AssignedCollaboratorCompany {
		return false
	}
	if q.RequestDateFrom != nil || q.RequestDateTo != nil {
		if rec.RequestDate == nil {
			return false
		}
		if q.RequestDateFrom != nil && rec.RequestDate.Before(*q.RequestDateFrom) {
			return false
		}
		if q.RequestDateTo != nil && rec.RequestDate.After(*q.RequestDateTo) {
			return false
		}
	}
	return true
}
