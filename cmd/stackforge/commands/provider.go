package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stackforge/stackforge/pkg/engine"
)

// answersProvider answers node solicitations from a preloaded map. A node
// with no recorded answer fails the walk, which keeps scripted runs honest.
type answersProvider struct {
	answers engine.Selections
}

func (p *answersProvider) Choose(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
	ids, ok := p.answers[node.ID]
	if !ok {
		return nil, fmt.Errorf("no answer provided for node %q", node.ID)
	}
	return ids, nil
}

// loadAnswersFile parses an answers YAML document mapping node IDs to either
// a single option ID or a list of option IDs.
func loadAnswersFile(path string) (engine.Selections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse answers file: %w", err)
	}

	answers := make(engine.Selections, len(raw))
	for node, value := range raw {
		ids, err := normalizeAnswer(value)
		if err != nil {
			return nil, fmt.Errorf("answer for node %q: %w", node, err)
		}
		answers[node] = ids
	}
	return answers, nil
}

func normalizeAnswer(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected option ID string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("expected option ID or list, got %T", value)
	}
}

// parseSetFlags converts --set node=opt1,opt2 flags into seed selections.
func parseSetFlags(values []string) (engine.Selections, error) {
	out := make(engine.Selections, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected node=option[,option]", v)
		}
		ids := []string{}
		for _, id := range strings.Split(parts[1], ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		out[parts[0]] = ids
	}
	return out, nil
}

// interactiveProvider prompts on the terminal for each solicited node.
type interactiveProvider struct {
	in  io.Reader
	out io.Writer
}

func newInteractiveProvider() *interactiveProvider {
	return &interactiveProvider{in: os.Stdin, out: os.Stderr}
}

func (p *interactiveProvider) Choose(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
	fmt.Fprintf(p.out, "\n%s (%s):\n", node.ID, node.Category)
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d) %s [%s]\n", i+1, opt.Label, opt.ID)
	}
	if node.MultiSelect {
		fmt.Fprint(p.out, "Select options (comma-separated numbers or IDs, empty for none): ")
	} else {
		fmt.Fprint(p.out, "Select one option (number or ID): ")
	}

	scanner := bufio.NewScanner(p.in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("input closed while soliciting node %q", node.ID)
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return []string{}, nil
	}

	var ids []string
	for _, token := range strings.Split(line, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= len(options) {
			ids = append(ids, options[n-1].ID)
			continue
		}
		ids = append(ids, token)
	}
	return ids, nil
}
