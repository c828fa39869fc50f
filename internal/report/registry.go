package report

// Entry pairs a report kind's table schema with the mapper that fills it.
type Entry struct {
	Schema TableSchema
	Mapper Mapper
}

// Adding a report kind means adding a schema, a mapper and one entry here.
var registry = map[Kind]Entry{
	KindAppointments: {Schema: appointmentsSchema, Mapper: appointmentsMapper},
	KindClients:      {Schema: clientsSchema, Mapper: clientsMapper},
}

// Lookup returns the registry entry for kind. The returned schema is a copy.
func Lookup(kind Kind) (Entry, bool) {
	entry, ok := registry[kind]
	if !ok {
		return Entry{}, false
	}
	entry.Schema = entry.Schema.clone()
	return entry, true
}

// SchemaFor returns the table schema for kind.
func SchemaFor(kind Kind) (TableSchema, bool) {
	entry, ok := Lookup(kind)
	return entry.Schema, ok
}
