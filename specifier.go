package main

import (
	"regexp"
	"strings"
)

// RefType classifies a ref string.
type RefType string

const (
	RefTypeCommit RefType = "commit"
	RefTypeTag    RefType = "tag"
	RefTypeBranch RefType = "branch"
)

// DefaultBranch is used when a specifier omits "@ref".
const DefaultBranch = "main"

var (
	commitRefPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
	tagRefPattern    = regexp.MustCompile(`^v?\d+\.\d+\.\d+`)
	ownerRepoChars   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ClassifyRef is a total function over non-empty strings, syntactic only —
// never issues a network call.
func ClassifyRef(ref string) RefType {
	switch {
	case commitRefPattern.MatchString(ref):
		return RefTypeCommit
	case tagRefPattern.MatchString(ref):
		return RefTypeTag
	default:
		return RefTypeBranch
	}
}

// Specifier is the parsed form of a user-facing "owner/repo[@ref]" string.
type Specifier struct {
	Owner string
	Repo  string
	Ref   string
	Path  string // optional trailing "/path" after the ref
}

// Name is the canonical "owner/repo" package identity.
func (s *Specifier) Name() string {
	return s.Owner + "/" + s.Repo
}

// String renders the specifier back to canonical "owner/repo@ref" form
// (the optional path suffix, if present, is appended as "/path").
func (s *Specifier) String() string {
	out := s.Name() + "@" + s.Ref
	if s.Path != "" {
		out += "/" + s.Path
	}
	return out
}

// ParseSpecifier accepts "owner/repo", "owner/repo@ref", and
// "owner/repo@ref/path" forms.
func ParseSpecifier(input string) (*Specifier, error) {
	ownerRepoPart := input
	ref := DefaultBranch
	path := ""

	if idx := strings.Index(input, "@"); idx >= 0 {
		ownerRepoPart = input[:idx]
		rest := input[idx+1:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			ref = rest[:slash]
			path = rest[slash+1:]
		} else {
			ref = rest
		}
	}

	segments := strings.Split(ownerRepoPart, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return nil, &SpecInvalidError{Input: input, Reason: "expected exactly one '/' separating owner and repo"}
	}
	owner, repo := segments[0], segments[1]
	if !ownerRepoChars.MatchString(owner) || !ownerRepoChars.MatchString(repo) {
		return nil, &SpecInvalidError{Input: input, Reason: "owner/repo must match [A-Za-z0-9._-]+"}
	}
	if ref == "" {
		return nil, &SpecInvalidError{Input: input, Reason: "ref must not be empty"}
	}

	return &Specifier{Owner: owner, Repo: repo, Ref: ref, Path: path}, nil
}
