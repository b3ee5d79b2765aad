package remote

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DefaultOperations are the command templates registered out of the box.
// They target the appliance shell of a vCenter-style server; deployments
// override them with the operations config map.
var DefaultOperations = map[string]string{
	OpTestConnection: `echo "Connected successfully"; ` +
		`echo "Version: $( (vpxd -v 2>/dev/null || uname -r) | grep -o '[0-9][0-9.]*' | head -n 1)"`,
	OpDisconnect: `echo "Disconnected"`,
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Registry maps operation names to shell command templates.
//
// Templates may reference ${ADDRESS}, ${USER} and any request parameter as
// ${NAME} (parameter names are upper-cased). Values are shell-quoted when
// they are substituted. The secret is never available to templates.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]string
}

// NewRegistry creates a registry holding DefaultOperations plus overrides.
func NewRegistry(overrides map[string]string) *Registry {
	r := &Registry{ops: make(map[string]string, len(DefaultOperations)+len(overrides))}
	for name, tmpl := range DefaultOperations {
		r.ops[name] = tmpl
	}
	for name, tmpl := range overrides {
		r.Register(name, tmpl)
	}
	return r
}

// Register adds or replaces an operation. Names are case-insensitive.
func (r *Registry) Register(name, template string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[strings.ToLower(strings.TrimSpace(name))] = template
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Command renders the command for req. Unknown operations and templates
// that reference a missing parameter return an *Error.
func (r *Registry) Command(req Request) (string, error) {
	r.mu.RLock()
	tmpl, ok := r.ops[strings.ToLower(strings.TrimSpace(req.Operation))]
	r.mu.RUnlock()
	if !ok {
		return "", Errorf(KindUnknownOperation, "Unknown remote operation '%s'", req.Operation)
	}

	values := map[string]string{
		"ADDRESS": req.Address,
		"USER":    req.Credential.Username,
	}
	for k, v := range req.Params {
		values[strings.ToUpper(k)] = v
	}

	var missing []string
	cmd := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := values[strings.ToUpper(name)]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return shellQuote(v)
	})
	if len(missing) > 0 {
		return "", &Error{
			Kind:    KindInvalidRequest,
			Message: fmt.Sprintf("Operation '%s' needs parameter(s): %s", req.Operation, strings.Join(missing, ", ")),
		}
	}
	return cmd, nil
}

// shellQuote single-quotes s for a POSIX shell, closing and reopening the
// quotes around any embedded single quote.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
