package report

import "strings"

var clientsSchema = TableSchema{
	Kind:  KindClients,
	Table: "clients",
	Columns: []Column{
		{Name: "client_id", Type: TypeIdentifier},
		{Name: "title", Type: TypeText, Nullable: true},
		{Name: "first_name", Type: TypeText, Nullable: true},
		{Name: "last_name", Type: TypeText, Nullable: true},
		{Name: "preferred_name", Type: TypeText, Nullable: true},
		{Name: "date_of_birth", Type: TypeTimestamp, Nullable: true},
		{Name: "sex", Type: TypeText, Nullable: true},
		{Name: "email", Type: TypeText, Nullable: true},
		{Name: "mobile_phone", Type: TypeText, Nullable: true},
		{Name: "home_phone", Type: TypeText, Nullable: true},
		{Name: "work_phone", Type: TypeText, Nullable: true},
		{Name: "address_1", Type: TypeText, Nullable: true},
		{Name: "address_2", Type: TypeText, Nullable: true},
		{Name: "address_3", Type: TypeText, Nullable: true},
		{Name: "city", Type: TypeText, Nullable: true},
		{Name: "state", Type: TypeText, Nullable: true},
		{Name: "post_code", Type: TypeText, Nullable: true},
		{Name: "country", Type: TypeText, Nullable: true},
		{Name: "occupation", Type: TypeText, Nullable: true},
		{Name: "emergency_contact", Type: TypeText, Nullable: true},
		{Name: "referral_source", Type: TypeText, Nullable: true},
		{Name: "referring_doctor", Type: TypeText, Nullable: true},
		{Name: "medicare_number", Type: TypeText, Nullable: true},
		{Name: "medicare_reference_number", Type: TypeText, Nullable: true},
		{Name: "dva_number", Type: TypeText, Nullable: true},
		{Name: "health_fund", Type: TypeText, Nullable: true},
		{Name: "health_fund_member_number", Type: TypeText, Nullable: true},
		{Name: "concession_type", Type: TypeText, Nullable: true},
		{Name: "invoice_to", Type: TypeText, Nullable: true},
		{Name: "invoice_email", Type: TypeText, Nullable: true},
		{Name: "invoice_extra_info", Type: TypeText, Nullable: true},
		{Name: "notes", Type: TypeText, Nullable: true},
		{Name: "reminder_type", Type: TypeText, Nullable: true},
		{Name: "sms_marketing", Type: TypeText, Nullable: true},
		{Name: "email_marketing", Type: TypeText, Nullable: true},
		{Name: "primary_practitioner", Type: TypeText, Nullable: true},
		{Name: "first_appointment", Type: TypeTimestamp, Nullable: true},
		{Name: "last_appointment", Type: TypeTimestamp, Nullable: true},
		{Name: "next_appointment", Type: TypeTimestamp, Nullable: true},
		{Name: "total_appointments", Type: TypeInteger, Nullable: true},
		{Name: "cancelled_appointments", Type: TypeInteger, Nullable: true},
		{Name: "did_not_arrive_appointments", Type: TypeInteger, Nullable: true},
		{Name: "account_balance", Type: TypeDecimal, Nullable: true},
		{Name: "client_created_at", Type: TypeTimestamp, Nullable: true},
	},
	UniqueKey: "client_id",
	Indexes: []Index{
		{Name: "idx_clients_client_id", Columns: []string{"client_id"}},
		{Name: "idx_clients_email", Columns: []string{"email"}},
		{Name: "idx_clients_last_name", Columns: []string{"last_name"}},
	},
}

var clientSources = map[string][]string{
	"client_id":                   {"Client ID", "Client Id", "Patient ID", "ID"},
	"title":                       {"Title"},
	"first_name":                  {"First Name", "Given Name", "Firstname"},
	"last_name":                   {"Last Name", "Surname", "Family Name", "Lastname"},
	"preferred_name":              {"Preferred Name", "Known As"},
	"date_of_birth":               {"Date of Birth", "DOB", "Birth Date", "Birthday"},
	"sex":                         {"Sex", "Gender"},
	"email":                       {"Email", "Email Address"},
	"mobile_phone":                {"Mobile Phone", "Mobile", "Mobile Number", "Cell Phone"},
	"home_phone":                  {"Home Phone", "Phone"},
	"work_phone":                  {"Work Phone", "Business Phone"},
	"address_1":                   {"Address 1", "Address Line 1", "Address", "Street Address"},
	"address_2":                   {"Address 2", "Address Line 2"},
	"address_3":                   {"Address 3", "Address Line 3"},
	"city":                        {"City", "Suburb", "Town"},
	"state":                       {"State", "Region", "Province"},
	"post_code":                   {"Post Code", "Postcode", "Zip", "Zip Code"},
	"country":                     {"Country"},
	"occupation":                  {"Occupation"},
	"emergency_contact":           {"Emergency Contact", "Emergency Contact Name"},
	"referral_source":             {"Referral Source", "Referred By", "How did you hear about us"},
	"referring_doctor":            {"Referring Doctor", "Referring Practitioner", "GP"},
	"medicare_number":             {"Medicare Number", "Medicare No"},
	"medicare_reference_number":   {"Medicare Reference Number", "Medicare IRN", "Medicare Ref"},
	"dva_number":                  {"DVA Number", "DVA No"},
	"health_fund":                 {"Health Fund", "Health Fund Name", "Private Health Fund"},
	"health_fund_member_number":   {"Health Fund Member Number", "Health Fund Number", "Member Number"},
	"concession_type":             {"Concession Type", "Concession"},
	"invoice_to":                  {"Invoice To", "Bill To"},
	"invoice_email":               {"Invoice Email", "Email Invoice To", "Billing Email"},
	"invoice_extra_info":          {"Invoice Extra Info", "Invoice Extra Information", "Extra Invoice Info"},
	"notes":                       {"Notes", "Note", "Client Notes"},
	"reminder_type":               {"Reminder Type", "Appointment Reminders", "Reminders"},
	"sms_marketing":               {"SMS Marketing", "Receives SMS Marketing"},
	"email_marketing":             {"Email Marketing", "Receives Email Marketing"},
	"primary_practitioner":        {"Primary Practitioner", "Practitioner", "Preferred Practitioner"},
	"first_appointment":           {"First Appointment", "First Appointment Date", "First Visit"},
	"last_appointment":            {"Last Appointment", "Last Appointment Date", "Last Visit"},
	"next_appointment":            {"Next Appointment", "Next Appointment Date", "Next Visit"},
	"total_appointments":          {"Total Appointments", "Appointments", "Appointment Count"},
	"cancelled_appointments":      {"Cancelled Appointments", "Cancellations"},
	"did_not_arrive_appointments": {"Did Not Arrive Appointments", "Did Not Arrive", "DNA Appointments", "DNA"},
	"account_balance":             {"Account Balance", "Balance", "Outstanding Balance"},
	"client_created_at":           {"Client Created At", "Created At", "Date Created", "Created"},
}

// clientMapper splits a combined name column into first and last name
// when the export has no separate name columns.
type clientMapper struct {
	labelMapper
}

var clientsMapper Mapper = clientMapper{labelMapper{sources: clientSources}}

func (m clientMapper) Map(schema TableSchema, header []string, rows []RawRow) MapResult {
	return m.mapWith(schema, header, rows, func(raw RawRow, index map[string]string, out MappedRow, _ *MapResult) {
		if out["first_name"] != nil || out["last_name"] != nil {
			return
		}
		name, ok := lookup(raw, index, "Name", "Client Name", "Client", "Full Name", "Patient Name")
		if !ok {
			return
		}
		full, _ := coerceText(name).(string)
		first, last := splitName(full)
		if first != "" {
			out["first_name"] = first
		}
		if last != "" {
			out["last_name"] = last
		}
	})
}

// splitName splits "First Middle Last" on the final space and
// "Last, First" on the comma.
func splitName(full string) (string, string) {
	full = strings.Join(strings.Fields(full), " ")
	if full == "" {
		return "", ""
	}
	if last, first, ok := strings.Cut(full, ","); ok {
		return strings.TrimSpace(first), strings.TrimSpace(last)
	}
	i := strings.LastIndexByte(full, ' ')
	if i < 0 {
		return full, ""
	}
	return full[:i], full[i+1:]
}
