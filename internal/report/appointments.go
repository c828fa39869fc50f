package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var appointmentsSchema = TableSchema{
	Kind:  KindAppointments,
	Table: "appointments",
	Columns: []Column{
		{Name: "appointment_id", Type: TypeIdentifier},
		{Name: "appointment_date", Type: TypeTimestamp, Nullable: true},
		{Name: "appointment_type", Type: TypeText, Nullable: true},
		{Name: "appointment_status", Type: TypeText, Nullable: true},
		{Name: "client", Type: TypeText, Nullable: true},
		{Name: "client_id", Type: TypeIdentifier, Nullable: true},
		{Name: "practitioner", Type: TypeText, Nullable: true},
		{Name: "practitioner_id", Type: TypeIdentifier, Nullable: true},
		{Name: "business", Type: TypeText, Nullable: true},
		{Name: "client_duration", Type: TypeInteger, Nullable: true},
		{Name: "practitioner_duration", Type: TypeInteger, Nullable: true},
		{Name: "billed_status", Type: TypeText, Nullable: true},
		{Name: "invoice_number", Type: TypeIdentifier, Nullable: true},
		{Name: "invoice_total", Type: TypeDecimal, Nullable: true},
		{Name: "referral_source", Type: TypeText, Nullable: true},
		{Name: "created_by", Type: TypeText, Nullable: true},
		{Name: "booked_online", Type: TypeText, Nullable: true},
		{Name: "booking_date", Type: TypeTimestamp, Nullable: true},
		{Name: "cancellation_date", Type: TypeTimestamp, Nullable: true},
		{Name: "cancellation_reason", Type: TypeText, Nullable: true},
		{Name: "clinical_note", Type: TypeText, Nullable: true},
	},
	UniqueKey: "appointment_id",
	Indexes: []Index{
		{Name: "idx_appointments_appointment_id", Columns: []string{"appointment_id"}},
		{Name: "idx_appointments_appointment_date", Columns: []string{"appointment_date"}},
		{Name: "idx_appointments_client_id", Columns: []string{"client_id"}},
	},
}

var appointmentSources = map[string][]string{
	"appointment_id":        {"Appointment ID", "Appointment Id", "Appt ID", "Booking ID"},
	"appointment_date":      {"Appointment Date", "Appointment Date/Time", "Appointment Start", "Start Time", "Starts At"},
	"appointment_type":      {"Appointment Type", "Type", "Service"},
	"appointment_status":    {"Appointment Status", "Status"},
	"client":                {"Client", "Client Name", "Patient", "Patient Name"},
	"client_id":             {"Client ID", "Client Id", "Patient ID"},
	"practitioner":          {"Practitioner", "Practitioner Name", "Provider"},
	"practitioner_id":       {"Practitioner ID", "Provider ID"},
	"business":              {"Business", "Location", "Clinic"},
	"client_duration":       {"Client Duration", "Duration"},
	"practitioner_duration": {"Practitioner Duration"},
	"billed_status":         {"Billed Status", "Billing Status", "Invoice Status"},
	"invoice_number":        {"Invoice Number", "Invoice No", "Invoice #"},
	"invoice_total":         {"Invoice Total", "Invoice Amount", "Total"},
	"referral_source":       {"Referral Source", "Referred By"},
	"created_by":            {"Created By", "Booked By"},
	"booked_online":         {"Booked Online", "Online Booking"},
	"booking_date":          {"Booking Date", "Booked At", "Created At", "Date Booked"},
	"cancellation_date":     {"Cancellation Date", "Cancelled At"},
	"cancellation_reason":   {"Cancellation Reason", "Cancellation Note"},
	"clinical_note":         {"Clinical Note", "Clinical Notes", "Treatment Note"},
}

// appointmentMapper falls back to separate "Date" and "Time" columns when
// the export has no combined appointment date.
type appointmentMapper struct {
	labelMapper
}

var appointmentsMapper Mapper = appointmentMapper{labelMapper{sources: appointmentSources}}

func (m appointmentMapper) Map(schema TableSchema, header []string, rows []RawRow) MapResult {
	return m.mapWith(schema, header, rows, func(raw RawRow, index map[string]string, out MappedRow, result *MapResult) {
		if out["appointment_date"] != nil {
			return
		}
		date, ok := lookup(raw, index, "Date", "Appointment Day")
		if !ok || isEmpty(date) {
			return
		}
		clock, _ := lookup(raw, index, "Time", "Start", "Appointment Time")
		v, degraded := coerce(TypeTimestamp, joinDateTime(date, clock))
		if degraded {
			result.NullCells++
		}
		out["appointment_date"] = v
	})
}

// joinDateTime combines a date cell and an optional time-of-day cell into a
// value the timestamp coercion understands.
func joinDateTime(date, clock any) any {
	if isEmpty(clock) {
		return date
	}
	d, ok := coerceTimestamp(date).(time.Time)
	if !ok {
		return date
	}
	switch c := clock.(type) {
	case float64:
		// fraction of a day
		if c >= 0 && c < 1 {
			return d.Add(time.Duration(c * float64(24*time.Hour)).Round(time.Second))
		}
	case time.Time:
		return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
	case string:
		if isNumeric(strings.TrimSpace(c)) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
				return joinDateTime(d, f)
			}
		}
		return fmt.Sprintf("%s %s", d.Format("2006-01-02"), normalizeClock(c))
	}
	return d
}

// normalizeClock rewrites 12-hour clocks ("9:30am", "9:30 PM") as 24-hour
// "15:04" so they join with an ISO date.
func normalizeClock(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3PM", "3 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05")
		}
	}
	return s
}
