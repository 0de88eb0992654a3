package pgsession

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sivaosorg/loggy"
)

// QueryInspect carries the display-only detail about one raw execution:
// the cleaned-up SQL text, its bind parameters, a best-effort
// parameter-interpolated rendering for logs, and timing. It is never
// used for execution — only for observability.
type QueryInspect struct {
	Operation  string
	Query      string
	Args       []any
	Completed  string
	ExecutedAt time.Time
	Duration   time.Duration
	Err        error
}

// QueryInspector receives a QueryInspect after every raw execution. The
// core ships exactly one concrete default, DefaultQueryInspector, which
// only logs through loggy; selecting a different tracing sink is an
// external collaborator concern (§1 non-goals: "logging/tracing sinks").
type QueryInspector interface {
	Inspect(q QueryInspect)
}

// QueryInspectorFunc adapts a plain function to QueryInspector.
type QueryInspectorFunc func(QueryInspect)

func (f QueryInspectorFunc) Inspect(q QueryInspect) { f(q) }

// DefaultQueryInspector logs one line per raw execution carrying the
// interpolated query text (trace level on success, error level on
// failure), matching the teacher's own
// debug-only interpolation helper in spirit: never used for execution,
// only for a human reading logs.
type DefaultQueryInspector struct{}

func (DefaultQueryInspector) Inspect(q QueryInspect) {
	if q.Err != nil {
		loggy.Errorf("pgsession | query | %s failed in %s: %s | %s", q.Operation, q.Duration, q.Err, q.Completed)
		return
	}
	loggy.Tracef("pgsession | query | %s completed in %s | %s", q.Operation, q.Duration, q.Completed)
}

// interpolateQuery replaces PostgreSQL placeholders ($1, $2, ...) with a
// best-effort text rendering of their bound values, for display only.
// It is never used for actual execution and performs no escaping.
func interpolateQuery(query string, args []any) string {
	if len(args) == 0 {
		return cleanupQuery(query)
	}
	result := query
	for i := len(args) - 1; i >= 0; i-- {
		placeholder := fmt.Sprintf("$%d", i+1)
		result = strings.ReplaceAll(result, placeholder, formatArgValue(args[i]))
	}
	return cleanupQuery(result)
}

// formatArgValue renders a single bound value for the interpolated query
// text, handling the common scalar and slice shapes a RowDecoder's
// counterpart — the values going *into* the wire — is likely to see.
func formatArgValue(arg any) string {
	if arg == nil {
		return "NULL"
	}
	switch v := arg.(type) {
	case string:
		return formatStringLiteral(v)
	case []byte:
		return formatStringLiteral(string(v))
	case time.Time:
		return formatStringLiteral(v.Format(time.RFC3339Nano))
	case bool:
		return fmt.Sprintf("%t", v)
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = formatStringLiteral(s)
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanupQuery(query string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(query, " "))
}
