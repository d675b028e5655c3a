package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case RolesResult:
		o.printRoles(v)
	case UserResult:
		o.printUser(v)
	case HashResult:
		_, _ = fmt.Fprintln(o.w, v.Hash)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// RolesResult response type
type RolesResult struct {
	Roles map[string]int `json:"roles"`
}

// UserResult response type (matches API)
type UserResult struct {
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// HashResult is the output of the hash command
type HashResult struct {
	Hash string `json:"hash"`
}

func (o *Output) printRoles(r RolesResult) {
	names := make([]string, 0, len(r.Roles))
	for name := range r.Roles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return r.Roles[names[i]] < r.Roles[names[j]] })
	for _, name := range names {
		_, _ = fmt.Fprintf(o.w, "%d  %s\n", r.Roles[name], name)
	}
}

func (o *Output) printUser(u UserResult) {
	_, _ = fmt.Fprintf(o.w, "User: %s\n", u.Username)
	_, _ = fmt.Fprintf(o.w, "Role: %s\n", u.Role)
	_, _ = fmt.Fprintf(o.w, "Created: %s\n", u.CreatedAt.Format(time.RFC3339))
	if u.Bio != "" {
		_, _ = fmt.Fprintf(o.w, "Bio: %s\n", u.Bio)
	}
}
