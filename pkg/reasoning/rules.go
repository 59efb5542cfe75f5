package reasoning

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rules is an offline, deterministic Handler.
//
// Condition instructions are read line by line:
//
//	when contains(last, "yes") -> follow_up
//	when len(ratings) > 0 && ratings[0] == "5" -> thanks
//	otherwise -> end
//
// The first rule whose expression is true wins. Lines that are not rules are ignored,
// so free-text guidance may sit next to them. Expressions see:
// last (latest respondent text), ratings (latest selected ratings),
// answers (node id -> text), visits (number of respondent replies), node (the condition id)
// and contains(s, sub) (case-insensitive).
//
// Generation instructions are returned as text with {{last}} and {{answer.<nodeId>}} replaced.
type Rules struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewRules creates the rule handler.
func NewRules() *Rules {
	return &Rules{programs: make(map[string]*vm.Program)}
}

// ErrNoRuleMatched is returned when no rule of a condition applies.
var ErrNoRuleMatched = errors.New("no rule matched")

var ruleLine = regexp.MustCompile(`^(?i)(?:when\s+(.+?)|otherwise|always)\s*->\s*(\S+)\s*$`)

// Rule is one routing line of a condition.
type Rule struct {
	Cond   string // empty for otherwise
	Target string
}

// ParseRules extracts the routing rules of condition instructions.
func ParseRules(instructions string) []Rule {
	var rules []Rule
	for _, line := range strings.Split(instructions, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := ruleLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rules = append(rules, Rule{Cond: strings.TrimSpace(m[1]), Target: m[2]})
	}
	return rules
}

func (r *Rules) Handle(ctx context.Context, req Request, emit func(Frame)) error {
	switch req.Kind {
	case KindCondition:
		target, err := r.resolve(req)
		if err != nil {
			return err
		}
		emit(Frame{Target: target, Done: true})
	case KindGenerate:
		text := r.render(req.Instructions, req.Transcript)
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			emit(Frame{Chunk: w})
		}
		emit(Frame{Done: true})
	case KindPredict:
		answers := 0
		for _, e := range req.Transcript {
			if e.Role == domain.RoleUser {
				answers++
			}
		}
		emit(Frame{Chunk: fmt.Sprintf("Thank you. We recorded %d answers.", answers), Done: true})
	case KindAutoFix:
		doc, err := Repair(req.Document)
		if err != nil {
			return err
		}
		emit(Frame{Chunk: string(doc), Done: true})
	default:
		return fmt.Errorf("unsupported request kind %q", req.Kind)
	}
	return nil
}

func (r *Rules) resolve(req Request) (string, error) {
	rules := ParseRules(req.Instructions)
	if len(rules) == 0 {
		return "", fmt.Errorf("condition '%s' has no rules: %w", req.NodeID, ErrNoRuleMatched)
	}

	env := ruleEnv(req.NodeID, req.Transcript)
	for _, rl := range rules {
		if rl.Cond == "" {
			return rl.Target, nil
		}
		program, err := r.program(rl.Cond, env)
		if err != nil {
			return "", err
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("rule %q: %w", rl.Cond, err)
		}
		if ok, _ := out.(bool); ok {
			return rl.Target, nil
		}
	}
	return "", fmt.Errorf("condition '%s': %w", req.NodeID, ErrNoRuleMatched)
}

func (r *Rules) program(code string, env map[string]any) (*vm.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.programs[code]; ok {
		return p, nil
	}
	p, err := expr.Compile(code,
		expr.Env(env),
		expr.AsBool(),
		expr.Function("contains", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("contains requires 2 arguments")
			}
			s, _ := params[0].(string)
			sub, _ := params[1].(string)
			return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", code, err)
	}
	r.programs[code] = p
	return p, nil
}

func ruleEnv(nodeID string, transcript []domain.TranscriptEntry) map[string]any {
	answers := make(map[string]string)
	last := ""
	ratings := []string{}
	visits := 0
	for _, e := range transcript {
		if e.Role != domain.RoleUser {
			continue
		}
		visits++
		last = e.Text
		ratings = append([]string{}, e.Ratings...)
		if e.NodeID != "" {
			answers[e.NodeID] = e.Text
		}
	}
	return map[string]any{
		"node":    nodeID,
		"last":    last,
		"ratings": ratings,
		"answers": answers,
		"visits":  visits,
	}
}

var placeholder = regexp.MustCompile(`\{\{\s*(last|answer\.[A-Za-z0-9_.:-]+)\s*\}\}`)

func (r *Rules) render(instructions string, transcript []domain.TranscriptEntry) string {
	env := ruleEnv("", transcript)
	answers := env["answers"].(map[string]string)
	return placeholder.ReplaceAllStringFunc(instructions, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if key == "last" {
			return env["last"].(string)
		}
		return answers[strings.TrimPrefix(key, "answer.")]
	})
}
