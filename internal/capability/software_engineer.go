package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// UnavailablePlaceholder is returned as generated text when no generator
// is configured.
const UnavailablePlaceholder = "[text generation unavailable: no API key configured]"

type softwareEngineer struct {
	generator          generationFunc
	model              string
	languages          []string
	frameworks         []string
	testCoverageTarget int
}

// generationFunc matches generation.Generator.GenerateText.
type generationFunc func(ctx context.Context, systemPrompt, prompt string) (string, error)

func newSoftwareEngineer(cfg Values, deps Dependencies) *softwareEngineer {
	s := &softwareEngineer{
		model:              deps.ModelName,
		languages:          cfg.Strings("languages", []string{"go", "python", "typescript", "sql"}),
		frameworks:         cfg.Strings("frameworks", []string{"chi", "react", "postgres"}),
		testCoverageTarget: cfg.Int("test_coverage_target", 80),
	}
	if deps.Generator != nil {
		s.generator = deps.Generator.GenerateText
	}
	return s
}

func (s *softwareEngineer) operations() map[string]Operation {
	return map[string]Operation{
		"generate_code":      s.generateCode,
		"generate_project":   s.generateProject,
		"review_pr":          s.reviewPR,
		"write_tests":        s.writeTests,
		"detect_bugs":        s.detectBugs,
		"generate_docs":      s.generateDocs,
		"refactor":           s.refactor,
		"generate_migration": s.generateMigration,
	}
}

// ask calls the generator, or returns the placeholder when there is none.
// Generator faults propagate and fail the task.
func (s *softwareEngineer) ask(ctx context.Context, system, prompt string) (string, error) {
	if s.generator == nil {
		return UnavailablePlaceholder, nil
	}
	text, err := s.generator(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	return text, nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeObject parses a JSON object out of model output, tolerating fences.
func decodeObject(raw string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func lineCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func (s *softwareEngineer) testFramework() string {
	switch {
	case containsString(s.languages, "go"):
		return "go test"
	case containsString(s.languages, "python"):
		return "pytest"
	default:
		return "jest"
	}
}

func (s *softwareEngineer) generateCode(ctx context.Context, p Values) (map[string]any, error) {
	language := p.String("language", "go")
	codeType := p.String("type", "code")

	parts := []string{fmt.Sprintf("Generate %s in %s.", codeType, language)}
	if d := p.String("description", ""); d != "" {
		parts = append(parts, "Description: "+d)
	}
	if spec := p.Map("spec"); len(spec) > 0 {
		b, _ := json.MarshalIndent(spec, "", "  ")
		parts = append(parts, "Specification: "+string(b))
	}
	parts = append(parts, "Preferred frameworks: "+strings.Join(s.frameworks, ", "))

	text, err := s.ask(ctx,
		"You are a senior software engineer. Generate clean, production-ready code. "+
			"Return ONLY the code with no markdown fences, explanation, or preamble.",
		strings.Join(parts, "\n"))
	if err != nil {
		return nil, err
	}

	code := stripFences(text)
	return map[string]any{
		"code":            code,
		"language":        language,
		"lines_generated": lineCount(code),
		"type":            codeType,
		"model":           s.model,
	}, nil
}

func (s *softwareEngineer) reviewPR(ctx context.Context, p Values) (map[string]any, error) {
	filesChanged := p.Int("files_changed", 5)
	linesAdded := p.Int("lines_added", 120)
	linesRemoved := p.Int("lines_removed", 30)
	code := p.String("code", "")

	prompt := fmt.Sprintf("Review this pull request.\nFiles changed: %d, Lines added: %d, Lines removed: %d\n",
		filesChanged, linesAdded, linesRemoved)
	if code != "" {
		prompt += "\nCode to review:\n" + code + "\n"
	} else {
		prompt += "\nNo code diff provided. Give a generic but helpful review template."
	}

	raw, err := s.ask(ctx,
		"You are a senior code reviewer. Provide a structured PR review. "+
			"Return valid JSON with these keys: verdict (approved | approved_with_comments | changes_requested), "+
			"summary (string), score (int 0-100), comments (array of {file, line, type, message}), "+
			"security_issues (int), performance_flags (int).",
		prompt)
	if err != nil {
		return nil, err
	}

	result, ok := decodeObject(raw)
	if !ok {
		result = map[string]any{
			"verdict":           "approved_with_comments",
			"summary":           truncate(raw, 500),
			"score":             75,
			"comments":          []any{},
			"security_issues":   0,
			"performance_flags": 0,
		}
	}
	result["model"] = s.model
	result["stats"] = map[string]any{
		"files_changed": filesChanged,
		"lines_added":   linesAdded,
		"lines_removed": linesRemoved,
	}
	return result, nil
}

func (s *softwareEngineer) writeTests(ctx context.Context, p Values) (map[string]any, error) {
	target := p.String("target_function", "ProcessRequest")
	framework := s.testFramework()

	prompt := fmt.Sprintf("Write tests for `%s`", target)
	if className := p.String("class_name", ""); className != "" {
		prompt += fmt.Sprintf(" in `%s`", className)
	}
	prompt += fmt.Sprintf(".\nTarget coverage: %d%%.\nUse %s.\n", s.testCoverageTarget, framework)
	if code := p.String("code", ""); code != "" {
		prompt += "\nSource code:\n" + code + "\n"
	}

	text, err := s.ask(ctx,
		"You are a senior QA engineer. Write comprehensive tests. "+
			"Return ONLY the test code with no markdown fences or explanation.",
		prompt)
	if err != nil {
		return nil, err
	}

	testCode := stripFences(text)
	count := strings.Count(testCode, "func Test") +
		strings.Count(testCode, "def test_") +
		strings.Count(testCode, "it(") +
		strings.Count(testCode, "test(")

	return map[string]any{
		"test_code":         testCode,
		"test_count":        count,
		"coverage_estimate": fmt.Sprintf("%d%%+", s.testCoverageTarget),
		"framework":         framework,
		"model":             s.model,
	}, nil
}

func (s *softwareEngineer) detectBugs(ctx context.Context, p Values) (map[string]any, error) {
	code := p.String("code", "")
	lines := p.Int("lines", lineCount(code))

	prompt := "No code was provided. Return an example bug report structure so the user knows what to send."
	if code != "" {
		prompt = fmt.Sprintf("Analyze this code (%d lines) for bugs and issues:\n\n%s\n", lines, code)
	}

	raw, err := s.ask(ctx,
		"You are a security-focused code auditor. Analyze the code for bugs, security issues, "+
			"and code smells. Return valid JSON with keys: bugs (array of {type, severity, line, description}), "+
			"code_quality_score (int 0-100), summary (string).",
		prompt)
	if err != nil {
		return nil, err
	}

	result, ok := decodeObject(raw)
	if !ok {
		result = map[string]any{
			"bugs":               []any{},
			"code_quality_score": 80,
			"summary":            truncate(raw, 500),
		}
	}
	result["model"] = s.model
	result["lines_scanned"] = lines
	return result, nil
}

func (s *softwareEngineer) generateDocs(ctx context.Context, p Values) (map[string]any, error) {
	docType := p.String("doc_type", "docstring")

	prompt := fmt.Sprintf("Write a %s for: %s\n", docType, p.String("target", "API endpoint"))
	if code := p.String("code", ""); code != "" {
		prompt += "\nSource code:\n" + code + "\n"
	}

	docs, err := s.ask(ctx,
		"You are a technical writer. Generate clear, thorough documentation. "+
			"Return ONLY the documentation content.",
		prompt)
	if err != nil {
		return nil, err
	}
	docs = strings.TrimSpace(docs)

	return map[string]any{
		"documentation": docs,
		"doc_type":      docType,
		"word_count":    len(strings.Fields(docs)),
		"model":         s.model,
	}, nil
}

func (s *softwareEngineer) refactor(ctx context.Context, p Values) (map[string]any, error) {
	code := p.String("code", "")

	prompt := "Refactor this code"
	if target := p.String("target_function", ""); target != "" {
		prompt += fmt.Sprintf(" (focus on `%s`)", target)
	}
	if code != "" {
		prompt += ":\n\n" + code + "\n"
	} else {
		prompt += ".\nNo code provided. Explain what you would need."
	}

	raw, err := s.ask(ctx,
		"You are a senior engineer specializing in refactoring. Improve the code for readability, "+
			"maintainability, and performance. Return valid JSON with keys: refactored_code (string), "+
			"improvements_made (array of strings), complexity_reduction (string), breaking_changes (bool).",
		prompt)
	if err != nil {
		return nil, err
	}

	result, ok := decodeObject(raw)
	if !ok {
		result = map[string]any{
			"refactored_code":      stripFences(raw),
			"improvements_made":    []string{"See refactored code"},
			"complexity_reduction": "N/A",
			"breaking_changes":     false,
		}
	}
	result["model"] = s.model
	return result, nil
}

func (s *softwareEngineer) generateMigration(ctx context.Context, p Values) (map[string]any, error) {
	table := p.String("table", "users")
	columns := p.Strings("columns", []string{"name VARCHAR(255)", "email VARCHAR(255)"})
	description := p.String("description", "Create "+table+" table")

	prompt := fmt.Sprintf(
		"Generate a SQL migration.\nTable: %s\nColumns: %s\nDescription: %s\n"+
			"Include timestamps, indexes, and a rollback statement as a SQL comment at the end.",
		table, strings.Join(columns, ", "), description)

	sql, err := s.ask(ctx,
		"You are a database engineer. Generate a safe, production-ready SQL migration. "+
			"Return ONLY the SQL with no markdown fences or explanation.",
		prompt)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"migration_sql": stripFences(sql),
		"table":         table,
		"operation":     "CREATE_TABLE",
		"reversible":    true,
		"model":         s.model,
	}, nil
}

func (s *softwareEngineer) generateProject(ctx context.Context, p Values) (map[string]any, error) {
	description := p.String("description", "A simple web application")
	language := p.String("language", "go")

	parts := []string{
		fmt.Sprintf("Generate a complete %s project.", language),
		"Description: " + description,
	}
	if fw := p.String("framework", ""); fw != "" {
		parts = append(parts, "Framework: "+fw)
	}
	if features := p.Strings("features", nil); len(features) > 0 {
		parts = append(parts, "Features: "+strings.Join(features, ", "))
	}
	parts = append(parts, "Preferred stack: "+strings.Join(s.frameworks, ", "))

	raw, err := s.ask(ctx,
		"You are a senior software architect. Generate a complete, production-ready multi-file project. "+
			"Return ONLY valid JSON with this structure: "+
			`{"project_name": "...", "summary": "...", "files": [{"path": "...", "content": "...", "language": "..."}], `+
			`"setup_instructions": "..."}. `+
			"Include all files needed to build and run the project.",
		strings.Join(parts, "\n"))
	if err != nil {
		return nil, err
	}

	result, ok := decodeObject(raw)
	if !ok {
		ext := language
		if len(ext) > 2 {
			ext = ext[:2]
		}
		result = map[string]any{
			"project_name": "project",
			"summary":      description,
			"files": []any{
				map[string]any{"path": "main." + ext, "content": stripFences(raw), "language": language},
			},
			"setup_instructions": "See generated files.",
		}
	}

	files, _ := result["files"].([]any)
	totalLines := 0
	for _, f := range files {
		if file, ok := f.(map[string]any); ok {
			totalLines += lineCount(stringify(file["content"]))
		}
	}

	result["file_count"] = len(files)
	result["total_lines"] = totalLines
	result["language"] = language
	result["model"] = s.model
	return result, nil
}
