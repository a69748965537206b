package engine

import (
	"regexp"
	"strconv"
	"time"

	"fenix-advisor/backend/utils"
)

var placeholderRegex = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Bindings maps placeholder names to rendered values.
type Bindings map[string]string

func (b Bindings) Money(name string, f float64) Bindings {
	b[name] = utils.FormatMoney(f)
	return b
}

func (b Bindings) Number(name string, f float64) Bindings {
	b[name] = utils.FormatNumber(f)
	return b
}

func (b Bindings) Percent(name string, f float64) Bindings {
	b[name] = utils.FormatPercent(f)
	return b
}

func (b Bindings) Int(name string, n int) Bindings {
	b[name] = strconv.Itoa(n)
	return b
}

func (b Bindings) Month(name string, t time.Time) Bindings {
	b[name] = utils.FormatMonth(t)
	return b
}

func (b Bindings) Text(name, s string) Bindings {
	b[name] = s
	return b
}

// Fill substitutes {name} placeholders. Placeholders without a binding
// are left in place and returned, in order of first appearance.
func Fill(tmpl string, b Bindings) (string, []string) {
	var unresolved []string
	seen := map[string]bool{}
	out := placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := b[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return m
	})
	return out, unresolved
}
