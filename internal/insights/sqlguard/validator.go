// Package sqlguard validates candidate SQL produced by the text-generation
// model. It is the security boundary between untrusted model output and the
// database: nothing it has not passed may be executed.
//
// The checks are pattern-level (blocklist), not a SQL grammar. The exact
// bypasses they defend against are listed per rule; the set should not be
// assumed exhaustive against novel vendor syntax.
package sqlguard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of validating one candidate statement. SQL carries
// the normalized statement (trailing semicolon stripped, LIMIT bounded)
// whether or not validation passed, so callers can log what was attempted.
type Result struct {
	Valid  bool     `json:"valid"`
	SQL    string   `json:"sql"`
	Errors []string `json:"errors"`
}

const (
	// DefaultLimit is appended when the statement carries no LIMIT clause.
	DefaultLimit = 100
	// MaxLimit caps any explicit numeric LIMIT.
	MaxLimit = 1000
)

// Statement keywords that must never appear anywhere in the body, matched as
// whole words so column names like updated_at or execution_time never trip.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "COPY", "CALL", "SET", "RESET",
	"RETURNING",
}

// Functions with file/system access, privilege, DoS or exfiltration reach.
var dangerousFunctions = []string{
	"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "pg_sleep",
	"pg_terminate_backend", "set_config", "dblink", "lo_export",
}

var (
	keywordPatterns  = make(map[string]*regexp.Regexp, len(forbiddenKeywords))
	functionPatterns = make(map[string]*regexp.Regexp, len(dangerousFunctions))

	selectPrefixPattern = regexp.MustCompile(`(?i)^select\b`)
	leadingWordPattern  = regexp.MustCompile(`^[A-Za-z]+`)
	commentPattern      = regexp.MustCompile(`--|/\*`)
	unionPattern        = regexp.MustCompile(`(?i)\bunion\b`)
	selectIntoPattern   = regexp.MustCompile(`(?is)\bselect\b.*\binto\s+[a-zA-Z_][a-zA-Z0-9_".]*`)
	ctePattern          = regexp.MustCompile(`(?i)\bwith\s+[a-zA-Z_][a-zA-Z0-9_]*\s+as\s*\(`)
	tenantPattern       = regexp.MustCompile(`(?i)\b(?:[a-zA-Z_][a-zA-Z0-9_]*\.)?store_id\s*=\s*\$1`)
	limitNumberPattern  = regexp.MustCompile(`(?i)\blimit\s+(\d+)\b`)
	limitWordPattern    = regexp.MustCompile(`(?i)\blimit\b`)
)

func init() {
	for _, kw := range forbiddenKeywords {
		keywordPatterns[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	for _, fn := range dangerousFunctions {
		functionPatterns[fn] = regexp.MustCompile(`(?i)\b` + fn + `\b`)
	}
}

// Validate runs every safety check against the raw statement and returns the
// full list of violations. All checks run; multiply-invalid input yields one
// error per violation. Pure and deterministic, no I/O.
func Validate(raw string) Result {
	body := stripTrailingSemicolon(strings.TrimSpace(raw))
	if body == "" {
		return Result{Valid: false, SQL: body, Errors: []string{"SQL query is empty"}}
	}

	var errs []string

	// Runs before keyword checks so non-ASCII homoglyphs cannot dodge them.
	if hasNonASCII(body) {
		errs = append(errs, "SQL contains non-ASCII characters")
	}

	if strings.Contains(body, ";") {
		errs = append(errs, "Multi-statement SQL is not allowed")
	}

	// Comments are a classic way to smuggle a truncated WHERE clause.
	if commentPattern.MatchString(body) {
		errs = append(errs, "SQL comments are not allowed")
	}

	if !selectPrefixPattern.MatchString(body) {
		errs = append(errs, "Only SELECT queries are allowed")
		if kw := leadingWordPattern.FindString(body); kw != "" {
			errs = append(errs, fmt.Sprintf("Statement must begin with SELECT, found %s", strings.ToUpper(kw)))
		}
	}

	for _, kw := range forbiddenKeywords {
		if keywordPatterns[kw].MatchString(body) {
			errs = append(errs, fmt.Sprintf("Forbidden keyword %s is not allowed", kw))
		}
	}

	// UNION can splice reads of other tables onto an innocent SELECT.
	if unionPattern.MatchString(body) {
		errs = append(errs, "UNION queries are not allowed")
	}

	// SELECT ... INTO creates a table as a side effect.
	if selectIntoPattern.MatchString(body) {
		errs = append(errs, "SELECT INTO is not allowed")
	}

	// A CTE can wrap a write with RETURNING behind the SELECT-only check.
	if ctePattern.MatchString(body) {
		errs = append(errs, "CTE (WITH) queries are not allowed")
	}

	for _, fn := range dangerousFunctions {
		if functionPatterns[fn].MatchString(body) {
			errs = append(errs, fmt.Sprintf("Dangerous function %s is not allowed", fn))
		}
	}

	// Only the parameterized comparison counts: store_id as a string
	// literal, a column alias, or compared to a hardcoded UUID does not.
	if !tenantPattern.MatchString(body) {
		errs = append(errs, "Query must filter by store_id = $1 for tenant isolation")
	}

	return Result{
		Valid:  len(errs) == 0,
		SQL:    enforceLimit(body),
		Errors: errs,
	}
}

// stripTrailingSemicolon removes at most one trailing semicolon and any
// whitespace around it. Further semicolons are the multi-statement check's
// problem.
func stripTrailingSemicolon(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(s, ";") {
		s = strings.TrimRight(strings.TrimSuffix(s, ";"), " \t\r\n")
	}
	return s
}

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return true
		}
	}
	return false
}

// enforceLimit appends LIMIT 100 when no LIMIT clause exists and caps an
// explicit numeric LIMIT at 1000. A non-numeric LIMIT (e.g. a parameter) is
// left untouched.
func enforceLimit(body string) string {
	m := limitNumberPattern.FindStringSubmatchIndex(body)
	if m == nil {
		if limitWordPattern.MatchString(body) {
			return body
		}
		return body + " LIMIT " + strconv.Itoa(DefaultLimit)
	}
	n, err := strconv.Atoi(body[m[2]:m[3]])
	if err == nil && n > MaxLimit {
		return body[:m[0]] + "LIMIT " + strconv.Itoa(MaxLimit) + body[m[1]:]
	}
	return body
}
