package report

import "strings"

// Kind identifies the business content of a report attachment.
type Kind string

const (
	KindAppointments Kind = "appointments"
	KindClients      Kind = "clients"
	KindUnsupported  Kind = "unsupported"
)

// SupportedKinds lists every kind that has a registered schema.
var SupportedKinds = []Kind{
	KindAppointments,
	KindClients,
}

func (k Kind) String() string {
	return string(k)
}

// Supported reports whether k has a schema and mapper.
func (k Kind) Supported() bool {
	_, ok := registry[k]
	return ok
}

type classificationRule struct {
	prefix string
	kind   Kind
}

// Evaluated in order, first match wins.
var classificationRules = []classificationRule{
	{prefix: "appointment", kind: KindAppointments},
	{prefix: "client list", kind: KindClients},
}

// Classify maps an attachment filename to a report kind by case-insensitive
// prefix. Filenames matching no rule are KindUnsupported.
func Classify(filename string) Kind {
	name := strings.ToLower(strings.TrimSpace(filename))
	for _, rule := range classificationRules {
		if strings.HasPrefix(name, rule.prefix) {
			return rule.kind
		}
	}
	return KindUnsupported
}
