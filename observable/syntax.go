package observable

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Diagnostic describes a syntax-check failure for one observable input.
// It is attached to the MalformedObservable error surfaced to the caller.
type Diagnostic struct {
	// EntityType is the observable type tag that was checked.
	EntityType string `json:"entity_type"`

	// Rule is the validation expression that failed.
	Rule string `json:"rule"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`
}

// String renders the diagnostic for logs and error context.
func (d *Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (rule: %s)", d.EntityType, d.Message, d.Rule)
}

// syntaxRule pairs a CEL expression with the message reported on failure.
type syntaxRule struct {
	expr    string
	message string
}

// syntaxRules holds the per-type validation expressions. Each expression is
// evaluated against a single "input" map variable carrying the typed
// attribute bag. Types absent from this table pass the check; the type
// registry has already gated unknown tags by the time the checker runs.
var syntaxRules = map[string][]syntaxRule{
	TypeAutonomousSystem: {
		{`'number' in input && int(input.number) > 0`, "autonomous system number must be a positive integer"},
	},
	TypeDirectory: {
		{`'path' in input && input.path != ''`, "directory path is required"},
	},
	TypeDomainName: {
		{`'value' in input && input.value.matches('^[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}$')`, "domain name is not valid"},
	},
	TypeEmailAddr: {
		{`'value' in input && input.value.matches('^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$')`, "email address is not valid"},
	},
	TypeIPv4Addr: {
		{`'value' in input && input.value.matches('^((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)(/(3[0-2]|[12]?[0-9]))?$')`, "IPv4 address is not valid"},
	},
	TypeIPv6Addr: {
		{`'value' in input && input.value.matches('^[0-9a-fA-F:]+$') && input.value.contains(':')`, "IPv6 address is not valid"},
	},
	TypeMacAddr: {
		{`'value' in input && input.value.matches('^([0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}$')`, "MAC address is not valid"},
	},
	TypeURL: {
		{`'value' in input && input.value != ''`, "url value is required"},
	},
	TypeMutex: {
		{`'name' in input && input.name != ''`, "mutex name is required"},
	},
	TypeSoftware: {
		{`'name' in input && input.name != ''`, "software name is required"},
	},
	TypeWindowsRegistryValue: {
		{`'name' in input && input.name != ''`, "registry value name is required"},
	},
	TypeWindowsRegistryKey: {
		{`'attribute_key' in input && input.attribute_key != ''`, "registry attribute key is required"},
	},
	TypeUserAccount: {
		{`'account_login' in input && input.account_login != ''`, "account login is required"},
	},
	TypeProcess: {
		{`'pid' in input && int(input.pid) > 0`, "process pid must be a positive integer"},
	},
	TypeNetworkTraffic: {
		{`'dst_port' in input && int(input.dst_port) > 0 && int(input.dst_port) < 65536`, "destination port must be within 1-65535"},
	},
	TypeArtifact: {
		{`'md5' in input || 'sha1' in input || 'sha256' in input || 'sha512' in input || 'payload_bin' in input`, "artifact requires a hash or payload"},
		{`!('md5' in input) || input.md5.matches('^[a-fA-F0-9]{32}$')`, "md5 hash is malformed"},
		{`!('sha1' in input) || input.sha1.matches('^[a-fA-F0-9]{40}$')`, "sha1 hash is malformed"},
		{`!('sha256' in input) || input.sha256.matches('^[a-fA-F0-9]{64}$')`, "sha256 hash is malformed"},
		{`!('sha512' in input) || input.sha512.matches('^[a-fA-F0-9]{128}$')`, "sha512 hash is malformed"},
	},
	TypeStixFile: {
		{`'md5' in input || 'sha1' in input || 'sha256' in input || 'sha512' in input || 'name' in input`, "file requires a hash or a name"},
		{`!('md5' in input) || input.md5.matches('^[a-fA-F0-9]{32}$')`, "md5 hash is malformed"},
		{`!('sha1' in input) || input.sha1.matches('^[a-fA-F0-9]{40}$')`, "sha1 hash is malformed"},
		{`!('sha256' in input) || input.sha256.matches('^[a-fA-F0-9]{64}$')`, "sha256 hash is malformed"},
		{`!('sha512' in input) || input.sha512.matches('^[a-fA-F0-9]{128}$')`, "sha512 hash is malformed"},
	},
	TypeX509Certificate: {
		{`'md5' in input || 'sha1' in input || 'sha256' in input || 'subject' in input || 'issuer' in input`, "certificate requires a hash, subject or issuer"},
		{`!('md5' in input) || input.md5.matches('^[a-fA-F0-9]{32}$')`, "md5 hash is malformed"},
		{`!('sha1' in input) || input.sha1.matches('^[a-fA-F0-9]{40}$')`, "sha1 hash is malformed"},
		{`!('sha256' in input) || input.sha256.matches('^[a-fA-F0-9]{64}$')`, "sha256 hash is malformed"},
	},
}

// compiledRule is one validation program ready for evaluation.
type compiledRule struct {
	program cel.Program
	rule    syntaxRule
}

// Checker validates typed observable inputs against per-type CEL programs.
// Programs are compiled once at construction; evaluation is thread-safe and
// allocation-light, so a single Checker is shared across requests.
type Checker struct {
	programs map[string][]compiledRule
}

// NewChecker compiles the validation programs for every observable type.
// A compile failure is a programming error in the rule table and surfaces
// here rather than at request time.
func NewChecker() (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	c := &Checker{programs: make(map[string][]compiledRule, len(syntaxRules))}
	for entityType, rules := range syntaxRules {
		compiled := make([]compiledRule, 0, len(rules))
		for _, r := range rules {
			ast, issues := env.Compile(r.expr)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("failed to compile rule for %s: %w", entityType, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("failed to build program for %s: %w", entityType, err)
			}
			compiled = append(compiled, compiledRule{program: prg, rule: r})
		}
		c.programs[entityType] = compiled
	}
	return c, nil
}

// Check evaluates the validation programs for the given type against the
// typed input bag. A nil return means the input is well formed. Types with
// no registered rules pass.
//
// An evaluation error (e.g. a pid that is not numeric) is reported as a
// failure of the rule being evaluated, not as an internal error.
func (c *Checker) Check(entityType string, input map[string]any) *Diagnostic {
	rules, ok := c.programs[entityType]
	if !ok {
		return nil
	}

	if input == nil {
		input = map[string]any{}
	}
	activation := map[string]any{"input": input}

	for _, cr := range rules {
		out, _, err := cr.program.Eval(activation)
		if err != nil {
			return &Diagnostic{
				EntityType: entityType,
				Rule:       cr.rule.expr,
				Message:    fmt.Sprintf("%s: %v", cr.rule.message, err),
			}
		}
		if passed, ok := out.Value().(bool); !ok || !passed {
			return &Diagnostic{
				EntityType: entityType,
				Rule:       cr.rule.expr,
				Message:    cr.rule.message,
			}
		}
	}
	return nil
}
