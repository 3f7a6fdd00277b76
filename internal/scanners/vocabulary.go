package scanners

import "regexp"

// Demographic is the built-in demographic and PII vocabulary.
func Demographic() []Category {
	return []Category{
		single("id", `\b(customerId|cm_15)\b`),
		single("name", `\b(first_name|last_name|full_name|name|amount)\b`),
		single("address", `\b(address|street|city|state|zip|postal_code)\b`),
		single("contact", `\b(phone|email|contact)\b`),
		single("identity", `\b(ssn|social_security|tax_id|passport)\b`),
		single("demographics", `\b(age|gender|dob|date_of_birth|nationality|ethnicity)\b`),
	}
}

// Integration is the built-in integration-technology vocabulary.
func Integration() []Category {
	return []Category{
		{Name: "rest_api", Patterns: []Pattern{
			{"http_methods", `\b(get|post|put|delete|patch)\b.*\b(api|endpoint)\b`},
			{"url_patterns", `https?://[^\s<>"]+|www\.[^\s<>"]+`},
			{"api_endpoints", `@RequestMapping|@GetMapping|@PostMapping|@PutMapping|@DeleteMapping`},
		}},
		{Name: "soap_services", Patterns: []Pattern{
			{"soap_components", `\b(soap|wsdl|xml)\b`},
			{"wsdl", `wsdl|WSDL|\.wsdl|getWSDL|WebService[Client]?`},
			{"soap_operations", `SOAPMessage|SOAPEnvelope|SOAPBody|SOAPHeader|SoapClient|SoapBinding`},
			{"xml_namespaces", `xmlns[:=]|namespace|schemaLocation`},
			{"soap_annotations", `@WebService|@WebMethod|@SOAPBinding|@WebResult|@WebParam`},
			{"soap_endpoints", `endpoint[_\s]?url|service[_\s]?url|wsdl[_\s]?url`},
		}},
		{Name: "database", Patterns: []Pattern{
			{"sql_operations", `\b(select|insert|update|delete)\s+from|into\b`},
			{"db_connections", `jdbc:|connection[_\s]?string|database[_\s]?url`},
		}},
		{Name: "messaging", Patterns: []Pattern{
			{"kafka", `kafka|producer|consumer|topic`},
			{"rabbitmq", `rabbitmq|amqp`},
			{"jms", `jms|queue|topic`},
		}},
		{Name: "file", Patterns: []Pattern{
			{"file_operations", `\b(csv|excel|xlsx|json|properties).*(read|write|load|save)\b`},
		}},
	}
}

// System is a legacy backend and the tables it owns.
type System struct {
	Name   string   `yaml:"name" json:"name"`
	Tables []string `yaml:"tables" json:"tables"`
}

// LegacySystems returns the built-in legacy systems.
func LegacySystems() []System {
	return []System{
		{"CRPS", []string{"CRPS_CUSTOMER", "CRPS_ACCOUNT", "CRPS_PORTFOLIO"}},
		{"CRIF", []string{"CRIF_MEMBER", "CRIF_RECORD", "CRIF_HISTORY"}},
		{"GNAT", []string{"GNAT_NAME", "GNAT_ADDRESS", "GNAT_TELEPHONE"}},
		{"Globestar", []string{"GLOBESTAR_TRANSACTION", "GLOBESTAR_ACCOUNT"}},
		{"Triumph", []string{"TRIUMPH_DATA", "TRIUMPH_HISTORY"}},
		{"CARS", []string{"CARS_RECORD", "CARS_TRANSACTION"}},
		{"MNS", []string{"MNS_NOTIFICATION", "MNS_TEMPLATE"}},
		{"CARE", []string{"CARE_CASE", "CARE_INTERACTION"}},
	}
}

// LegacyTables is the line-oriented vocabulary for systems: one category per
// system, one pattern per table. Suffixed table names match too.
func LegacyTables(systems []System) []Category {
	cats := make([]Category, 0, len(systems))
	for _, sys := range systems {
		c := Category{Name: sys.Name}
		for _, t := range sys.Tables {
			c.Patterns = append(c.Patterns, Pattern{Name: t, Expr: `\b` + regexp.QuoteMeta(t) + `\w*`})
		}
		cats = append(cats, c)
	}
	return cats
}

// FieldCategory is a demographic category and the variable name fragments
// that belong to it.
type FieldCategory struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
}

// DemographicFields is the built-in vocabulary for DemographicsAnalyzer.
func DemographicFields() []FieldCategory {
	return []FieldCategory{
		{"Personal", []string{
			"customerId", "embossedName", "companyEmbossedName", "gender",
			"dateOfBirth", "dob", "nationality", "maritalStatus", "annualIncome",
			"assets", "employer", "memberSinceDate",
		}},
		{"Government IDs", []string{"govId", "governmentId", "ssn", "passport", "drivingLicense"}},
		{"Business", []string{"businessDbaName", "businessLegalName", "nonProfitIndicator"}},
		{"Address", []string{
			"address", "homeAddress", "businessAddress", "alternateAddress",
			"temporaryAddress", "otherAddress", "additionalAddress",
		}},
		{"Phone", []string{
			"phone", "homePhone", "businessPhone", "mobilePhone",
			"alternatePhone", "faxNumber", "attorneyPhone",
		}},
		{"Email", []string{"email", "servicingEmail", "eStatementEmail", "businessEmail"}},
		{"Preferences", []string{"preferenceLanguageCode", "languagePreference", "preferredLanguage"}},
	}
}

func single(name, expr string) Category {
	return Category{Name: name, Patterns: []Pattern{{Name: name, Expr: expr}}}
}
