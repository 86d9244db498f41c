// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package steering evaluates operator-defined routing rules before default
// model selection. A rule is an expr condition over request attributes; the
// first matching rule pins the request to its model identifier.
package steering

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"
)

// Rule pins requests matching When to the Model identifier.
type Rule struct {
	// Name labels the rule in logs.
	Name string `yaml:"name"`
	// When is an expr condition over RequestAttrs. Empty or "true" always
	// matches.
	When string `yaml:"when"`
	// Model is the canonical identifier to pin matching requests to.
	Model string `yaml:"model"`
}

// RequestAttrs is the evaluation environment a rule condition sees.
type RequestAttrs struct {
	// Prompt is the raw user prompt.
	Prompt string `expr:"prompt"`
	// PromptLength is len(Prompt).
	PromptLength int `expr:"prompt_length"`
	// Requested is the identifier the caller asked for, possibly empty.
	Requested string `expr:"requested"`
	// Operation is "chat", "stream", or "embed".
	Operation string `expr:"operation"`
}

type compiledRule struct {
	rule    Rule
	program *vm.Program
}

// Engine holds the compiled rule set. Rules that fail to compile are logged
// and skipped; a rule whose evaluation errors simply does not match.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles the configured rules in order.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	for _, r := range rules {
		if strings.TrimSpace(r.Model) == "" {
			log.Warnf("steering rule %q has no model, skipping", r.Name)
			continue
		}
		cond := strings.TrimSpace(r.When)
		if cond == "" || cond == "true" {
			e.rules = append(e.rules, compiledRule{rule: r})
			continue
		}
		program, err := expr.Compile(cond, expr.Env(RequestAttrs{}), expr.AsBool())
		if err != nil {
			log.WithError(err).Warnf("steering rule %q failed to compile, skipping", r.Name)
			continue
		}
		e.rules = append(e.rules, compiledRule{rule: r, program: program})
	}
	return e
}

// Len returns the number of usable rules.
func (e *Engine) Len() int { return len(e.rules) }

// Evaluate returns the pinned identifier of the first matching rule, or
// ("", false) when no rule matches.
func (e *Engine) Evaluate(attrs RequestAttrs) (string, bool) {
	for _, c := range e.rules {
		if c.program == nil {
			return c.rule.Model, true
		}
		out, err := expr.Run(c.program, attrs)
		if err != nil {
			log.WithError(err).Debugf("steering rule %q evaluation failed", c.rule.Name)
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			log.Debugf("steering rule %q pinned model %s", c.rule.Name, c.rule.Model)
			return c.rule.Model, true
		}
	}
	return "", false
}
