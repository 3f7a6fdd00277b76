package scanners

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customerSource = `package com.acme;

public class Customer {
    private String customerId;
    private String city;

    public String contact(String email) {
        String url = "https://crm.acme.com/api/customers";
        return jdbcTemplate.queryForObject("select name from CRPS_CUSTOMER", String.class);
    }
}
`

func TestDemographicCustomerID(t *testing.T) {
	s := MustNew("demographic", Demographic())
	s.Analyze("Customer.java", `class Account {
    private String customerId;
}`)

	require.Len(t, s.Matches(), 1)
	assert.Equal(t, PatternMatch{
		Category:    "id",
		Pattern:     "id",
		FilePath:    "Account.java",
		LineNumber:  2,
		MatchedText: "customerId",
	}, s.Matches()[0])
}

func TestStatisticsIncludeZeroCategories(t *testing.T) {
	s := MustNew("integration", Integration())
	s.Analyze("Client.java", `String url = "https://billing.acme.com/charge";`)

	assert.Equal(t, map[string]int{
		"rest_api":      1,
		"soap_services": 0,
		"database":      0,
		"messaging":     0,
		"file":          0,
	}, s.Statistics())
	assert.Equal(t, "https://billing.acme.com/charge", s.Matches()[0].MatchedText)
	assert.Equal(t, "url_patterns", s.Matches()[0].Pattern)
}

func TestMatchedTextIsSubstringOfLine(t *testing.T) {
	lines := strings.Split(customerSource, "\n")
	for _, s := range []*Scanner{
		MustNew("demographic", Demographic()),
		MustNew("integration", Integration()),
		MustNew("legacy", LegacyTables(LegacySystems())),
	} {
		s.Analyze("Customer.java", customerSource)
		require.NotEmpty(t, s.Matches(), s.Name())
		for _, m := range s.Matches() {
			require.GreaterOrEqual(t, m.LineNumber, 1)
			require.LessOrEqual(t, m.LineNumber, len(lines))
			assert.Contains(t, lines[m.LineNumber-1], m.MatchedText, "%s/%s", s.Name(), m.Category)
		}
	}
}

func TestSummaryOrderAndReset(t *testing.T) {
	s := MustNew("demographic", Demographic())
	s.Analyze("Customer.java", customerSource)
	first := s.Matches()

	var order []string
	for _, g := range s.Summary() {
		order = append(order, g.Category)
	}
	// customerId (line 4) before city (line 5) before contact/email (line 7).
	assert.Equal(t, []string{"id", "address", "contact", "name"}, order)

	s.Analyze("Customer.java", customerSource)
	assert.Len(t, s.Matches(), 2*len(first), "matches accumulate across files of one run")

	s.Reset()
	assert.Empty(t, s.Matches())
	assert.Zero(t, s.Statistics()["id"])
	s.Analyze("Customer.java", customerSource)
	assert.Equal(t, first, s.Matches())
}

func TestLegacyTablesVocabulary(t *testing.T) {
	s := MustNew("legacy", LegacyTables(LegacySystems()))
	s.Analyze("Repo.java", `String q = "SELECT * FROM CRPS_CUSTOMER_HIST c JOIN gnat_name n";`)

	stats := s.Statistics()
	assert.Equal(t, 1, stats["CRPS"])
	assert.Equal(t, 1, stats["GNAT"])
	assert.Zero(t, stats["CARE"])
	assert.Equal(t, "CRPS_CUSTOMER_HIST", s.Matches()[0].MatchedText)
}

func TestInvalidPattern(t *testing.T) {
	_, err := New("broken", []Category{{Name: "x", Patterns: []Pattern{{Name: "p", Expr: "("}}}})
	assert.ErrorContains(t, err, "broken pattern x/p")
}

func TestLegacySelectLiteral(t *testing.T) {
	a := NewLegacyAnalyzer(nil)
	require.NoError(t, a.Analyze("Svc.java", `class Svc {
    void load() {
        String q = "SELECT * FROM CRPS_CUSTOMER";
    }
}`))

	assert.Equal(t, []TableUsage{{
		TableName:  "CRPS_CUSTOMER",
		System:     "CRPS",
		FilePath:   "Svc.java",
		ClassName:  "Svc",
		MethodName: "load",
		UsageType:  UsageSelect,
		Line:       3,
	}}, a.Usages())
}

func TestLegacyUsageKinds(t *testing.T) {
	a := NewLegacyAnalyzer(nil)
	require.NoError(t, a.Analyze("Repo.java", `class Repo {
    void report() {
        run("select a.id from crps_account a join GNAT_NAME n on a.id = n.id");
    }
    void purge() {
        run("delete from CARE_CASE");
    }
}`))

	var got []string
	for _, u := range a.Usages() {
		got = append(got, u.TableName+":"+u.UsageType+":"+u.MethodName)
	}
	assert.Equal(t, []string{
		"CRPS_ACCOUNT:JOIN:report",
		"GNAT_NAME:JOIN:report",
		"CARE_CASE:Other:purge",
	}, got)

	var systems []string
	for _, g := range a.Summary() {
		systems = append(systems, g.System)
	}
	assert.Equal(t, []string{"CRPS", "GNAT", "CARE"}, systems)
}

func TestLegacyEntityMapping(t *testing.T) {
	a := NewLegacyAnalyzer(nil)
	require.NoError(t, a.Analyze("Member.java", `@Entity
@Table(name = "CRIF_MEMBER_V2")
public class Member {
    private Long id;
}`))

	assert.Equal(t, []TableUsage{{
		TableName:  "CRIF_MEMBER_V2",
		System:     "CRIF",
		FilePath:   "Member.java",
		ClassName:  "Member",
		MethodName: "JPA Entity",
		UsageType:  UsageEntity,
		Line:       3,
	}}, a.Usages())

	a.Reset()
	require.NoError(t, a.Analyze("Audit.java", `@Entity @Table(name = "AUDIT_LOG") class Audit {}`))
	assert.Empty(t, a.Usages(), "tables outside the known systems are ignored")
}

func TestLegacyParseError(t *testing.T) {
	a := NewLegacyAnalyzer(nil)
	assert.Error(t, a.Analyze("Bad.java", "class {"))
	assert.Empty(t, a.Usages())
}

func TestDemographicsAnalyzer(t *testing.T) {
	a := NewDemographicsAnalyzer(nil)
	require.NoError(t, a.Analyze("Customer.java", `class Customer {
    private String homeAddress;
    private String a, mobilePhone;
    void update(String email, int age) {
        String ssnValue = "";
    }
}`))

	assert.Equal(t, []DemographicUsage{
		{FieldName: "homeAddress", Category: "Address", FilePath: "Customer.java", ClassName: "Customer", MethodName: "N/A", UsageType: UsageField, Line: 2},
		{FieldName: "email", Category: "Email", FilePath: "Customer.java", ClassName: "Customer", MethodName: "update", UsageType: UsageParameter, Line: 4},
		{FieldName: "ssnValue", Category: "Government IDs", FilePath: "Customer.java", ClassName: "Customer", MethodName: "update", UsageType: UsageVariable, Line: 5},
	}, a.Usages())

	var cats []string
	for _, g := range a.Summary() {
		cats = append(cats, g.Category)
	}
	assert.Equal(t, []string{"Government IDs", "Address", "Email"}, cats)
}

func TestDemographicsCustomVocabulary(t *testing.T) {
	a := NewDemographicsAnalyzer([]FieldCategory{{Name: "Card", Fields: []string{"pan", "cvv"}}})
	require.NoError(t, a.Analyze("Card.java", `class Card { String cardPan; String cvvCode; }`))
	assert.Len(t, a.Usages(), 2)

	a.Reset()
	assert.Empty(t, a.Summary())
}
