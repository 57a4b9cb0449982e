package service

import (
	"fmt"
	"strings"

	"github.com/ctxloom/ctxloom/internal/model"
)

// packState tracks greedy in-order packing under a hard token budget.
// Candidates are consumed stream by stream in priority order; the first
// candidate that would overflow the budget stops its stream. Candidates
// are never split or truncated, which keeps the output deterministic at
// the cost of some unused budget.
type packState struct {
	budget     int
	tokensUsed int
	included   []model.Candidate
	seen       map[string]struct{}
}

func newPackState(budget int) *packState {
	return &packState{budget: budget, seen: make(map[string]struct{})}
}

// consume packs candidates from one stream until the first overflow,
// skipping ids already included by a higher-priority stream. It reports
// how many candidates were appended.
func (p *packState) consume(stream []model.Candidate) int {
	appended := 0
	for _, cand := range stream {
		if _, ok := p.seen[cand.ID]; ok {
			continue
		}
		if p.tokensUsed+cand.TokenCount > p.budget {
			break
		}
		p.seen[cand.ID] = struct{}{}
		p.included = append(p.included, cand)
		p.tokensUsed += cand.TokenCount
		appended++
	}
	return appended
}

func (p *packState) free() int {
	return p.budget - p.tokensUsed
}

// renderPiece is one included candidate plus its rehydrated text.
type renderPiece struct {
	Candidate model.Candidate
	Text      string
}

// renderInput gathers everything the final context block is built from.
type renderInput struct {
	ProjectSummary *renderPiece
	Snippets       []renderPiece
	FileSummaries  []renderPiece
	Conversation   []renderPiece
	Prompt         string
}

// Section markers and the provenance footer format are a compatibility
// contract: downstream consumers parse them to attribute citations.
const (
	sectionPreamble = "=== SYSTEM PREAMBLE ==="
	sectionProject  = "=== PROJECT SUMMARY ==="
	sectionSnippets = "=== RELEVANT SNIPPETS ==="
	sectionFiles    = "=== FILE SUMMARIES ==="
	sectionConvo    = "=== CONVERSATION HISTORY ==="
	sectionPrompt   = "=== USER INSTRUCTION ==="
	sectionFormat   = "=== RESPONSE FORMAT ==="

	preambleText = "You are assisting with a software project. Use only the material below; each piece carries a provenance footer."
	formatText   = "When making factual claims about the project, cite the chunk id from the relevant provenance footer."
)

func provenanceFooter(id, path string) string {
	return fmt.Sprintf("[source: %s, %s]", id, path)
}

// renderContext produces the final assembled text block. Section order
// is fixed; empty sections are omitted except preamble, prompt and the
// response directive.
func renderContext(in renderInput) string {
	var sb strings.Builder
	sb.WriteString(sectionPreamble)
	sb.WriteString("\n")
	sb.WriteString(preambleText)
	sb.WriteString("\n")

	if in.ProjectSummary != nil {
		sb.WriteString("\n")
		sb.WriteString(sectionProject)
		sb.WriteString("\n")
		writePiece(&sb, *in.ProjectSummary)
	}
	if len(in.Snippets) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionSnippets)
		sb.WriteString("\n")
		for _, piece := range in.Snippets {
			writePiece(&sb, piece)
		}
	}
	if len(in.FileSummaries) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionFiles)
		sb.WriteString("\n")
		for _, piece := range in.FileSummaries {
			writePiece(&sb, piece)
		}
	}
	if len(in.Conversation) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionConvo)
		sb.WriteString("\n")
		for _, piece := range in.Conversation {
			writePiece(&sb, piece)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(sectionPrompt)
	sb.WriteString("\n")
	sb.WriteString(in.Prompt)
	sb.WriteString("\n")

	sb.WriteString("\n")
	sb.WriteString(sectionFormat)
	sb.WriteString("\n")
	sb.WriteString(formatText)
	sb.WriteString("\n")
	return sb.String()
}

func writePiece(sb *strings.Builder, piece renderPiece) {
	sb.WriteString(piece.Text)
	sb.WriteString("\n")
	sb.WriteString(provenanceFooter(piece.Candidate.ID, piece.Candidate.Path))
	sb.WriteString("\n")
}
