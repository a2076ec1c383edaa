package tmpl

import "errors"

// Package-specific errors
var (
	// ErrTemplateSyntax is returned when a field template fails to compile.
	ErrTemplateSyntax = errors.New("invalid template syntax")

	// ErrExpressionSyntax is returned when a highlight predicate fails to compile.
	ErrExpressionSyntax = errors.New("invalid expression syntax")
)
