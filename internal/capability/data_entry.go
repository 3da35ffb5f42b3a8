package capability

import (
	"context"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// fieldPatterns validate and extract well-known field kinds.
var fieldPatterns = map[string]*regexp.Regexp{
	"email":  regexp.MustCompile(`^[\w.\-]+@[\w.\-]+\.\w{2,}$`),
	"phone":  regexp.MustCompile(`^\+?[\d\s\-()]{7,15}$`),
	"date":   regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	"amount": regexp.MustCompile(`^\$?[\d,]+\.?\d{0,2}$`),
	"zip":    regexp.MustCompile(`^\d{5}(-\d{4})?$`),
}

// fieldSearch finds well-known field kinds inside free text.
var fieldSearch = map[string]*regexp.Regexp{
	"email":  regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w{2,}`),
	"phone":  regexp.MustCompile(`\+?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}`),
	"date":   regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	"amount": regexp.MustCompile(`\$[\d,]+(\.\d{1,2})?`),
	"zip":    regexp.MustCompile(`\b\d{5}(-\d{4})?\b`),
}

// documentFields lists the fields parse_document looks for per document type.
var documentFields = map[string][]string{
	"invoice":  {"invoice_number", "date", "vendor", "amount", "tax", "line_items"},
	"contract": {"parties", "effective_date", "term_months", "value", "clauses"},
	"form":     {"applicant_name", "date", "fields", "signatures"},
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
}

var (
	companySizes = []string{"1-10", "11-50", "51-200", "201-1000", "1000+"}
	industries   = []string{"SaaS", "FinTech", "Healthcare", "E-commerce", "Enterprise"}
	timezones    = []string{"America/New_York", "Europe/London", "Asia/Tokyo"}
	countryCodes = []string{"US", "GB", "DE", "FR", "JP"}
)

type dataEntry struct {
	outputFormat   string
	errorThreshold float64
}

func newDataEntry(cfg Values) *dataEntry {
	return &dataEntry{
		outputFormat:   cfg.String("output_format", "json"),
		errorThreshold: cfg.Float("error_threshold", 0.05),
	}
}

func (d *dataEntry) operations() map[string]Operation {
	return map[string]Operation{
		"extract_fields":   d.extractFields,
		"validate_records": d.validateRecords,
		"transform_data":   d.transformData,
		"enrich_records":   d.enrichRecords,
		"deduplicate":      d.deduplicate,
		"parse_document":   d.parseDocument,
	}
}

// labelledValues collects "key: value" lines from text, keyed by the
// normalized label.
func labelledValues(text string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		key = strings.ReplaceAll(key, " ", "_")
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}

func (d *dataEntry) extractFields(_ context.Context, p Values) (map[string]any, error) {
	fields := p.Strings("fields", []string{"name", "email", "phone", "address", "amount"})
	text := p.String("text", "")
	labelled := labelledValues(text)

	extracted := make(map[string]any, len(fields))
	flagged := 0
	for _, field := range fields {
		var (
			value      any
			confidence float64
			method     = "none"
		)
		if v, ok := labelled[strings.ToLower(field)]; ok {
			value, confidence, method = v, 0.95, "label"
		} else if re, ok := fieldSearch[field]; ok {
			if m := re.FindString(text); m != "" {
				value, confidence, method = m, 0.85, "regex"
			}
		}

		isFlagged := confidence < 0.75
		if isFlagged {
			flagged++
		}
		extracted[field] = map[string]any{
			"value":             value,
			"confidence":        confidence,
			"extraction_method": method,
			"flagged":           isFlagged,
		}
	}

	return map[string]any{
		"extracted_fields":       extracted,
		"total_fields":           len(fields),
		"high_confidence_fields": len(fields) - flagged,
		"flagged_for_review":     flagged,
		"requires_human_review":  float64(flagged) > float64(len(fields))*d.errorThreshold*10,
	}, nil
}

func (d *dataEntry) validateRecords(_ context.Context, p Values) (map[string]any, error) {
	records := p.Records("records")
	schema := p.Map("schema")

	valid := make([]map[string]any, 0, len(records))
	invalid := make([]map[string]any, 0)

	for i, record := range records {
		var errs []map[string]any
		for field := range schema {
			rules := schema.Map(field)
			value := stringify(record[field])

			if rules.Bool("required", false) && value == "" {
				errs = append(errs, map[string]any{"field": field, "error": "required_missing"})
			}
			kind := rules.String("type", "")
			if re, ok := fieldPatterns[kind]; ok && value != "" && !re.MatchString(value) {
				errs = append(errs, map[string]any{"field": field, "error": "invalid_" + kind + "_format"})
			}
			if maxLen := rules.Int("max_length", 0); maxLen > 0 && len(value) > maxLen {
				errs = append(errs, map[string]any{
					"field": field,
					"error": "exceeds_max_length_" + strconv.Itoa(maxLen),
				})
			}
		}

		if len(errs) > 0 {
			invalid = append(invalid, map[string]any{"index": i, "record": record, "errors": errs})
		} else {
			valid = append(valid, record)
		}
	}

	firstErrors := invalid
	if len(firstErrors) > 10 {
		firstErrors = firstErrors[:10]
	}

	return map[string]any{
		"total":           len(records),
		"valid":           len(valid),
		"invalid":         len(invalid),
		"validation_rate": percent(len(valid), len(records)),
		"errors":          firstErrors,
		"valid_records":   valid,
	}, nil
}

func (d *dataEntry) transformData(_ context.Context, p Values) (map[string]any, error) {
	records := p.Records("records")
	transformations := p.Records("transformations")

	transformed := make([]map[string]any, 0, len(records))
	for _, record := range records {
		out := make(map[string]any, len(record))
		for k, v := range record {
			out[k] = v
		}
		for _, tr := range transformations {
			rule := Values(tr)
			field := rule.String("field", "")
			value, ok := out[field]
			if !ok {
				continue
			}
			switch rule.String("operation", "") {
			case "uppercase":
				out[field] = strings.ToUpper(stringify(value))
			case "lowercase":
				out[field] = strings.ToLower(stringify(value))
			case "trim":
				out[field] = strings.TrimSpace(stringify(value))
			case "format_date":
				if formatted, ok := normalizeDate(stringify(value)); ok {
					out[field] = formatted
				}
			}
		}
		transformed = append(transformed, out)
	}

	return map[string]any{
		"transformed_count":       len(transformed),
		"transformations_applied": len(transformations),
		"records":                 transformed,
		"output_format":           d.outputFormat,
	}, nil
}

// normalizeDate reformats a date in any known layout as YYYY-MM-DD.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// pick deterministically selects one of options from a seed string.
func pick(seed string, options []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return options[h.Sum32()%uint32(len(options))]
}

func (d *dataEntry) enrichRecords(_ context.Context, p Values) (map[string]any, error) {
	records := p.Records("records")
	sources := p.Strings("sources", []string{"company_db", "geo_api"})

	useCompany := containsString(sources, "company_db")
	useGeo := containsString(sources, "geo_api")

	var fieldsAdded []string
	if useCompany {
		fieldsAdded = append(fieldsAdded, "company_size", "industry")
	}
	if useGeo {
		fieldsAdded = append(fieldsAdded, "timezone", "country_code")
	}

	enriched := make([]map[string]any, 0, len(records))
	for _, record := range records {
		seed := stringify(record["email"])
		if seed == "" {
			seed = stringify(record["name"])
		}
		if _, domain, ok := strings.Cut(seed, "@"); ok {
			seed = domain
		}

		out := make(map[string]any, len(record)+len(fieldsAdded))
		for k, v := range record {
			out[k] = v
		}
		if useCompany {
			out["company_size"] = pick(seed+"size", companySizes)
			out["industry"] = pick(seed+"industry", industries)
		}
		if useGeo {
			out["timezone"] = pick(seed+"tz", timezones)
			out["country_code"] = pick(seed+"country", countryCodes)
		}
		enriched = append(enriched, out)
	}

	if len(enriched) == 0 || fieldsAdded == nil {
		fieldsAdded = []string{}
	}

	return map[string]any{
		"enriched_count": len(enriched),
		"sources_used":   sources,
		"fields_added":   fieldsAdded,
		"records":        enriched,
	}, nil
}

func (d *dataEntry) deduplicate(_ context.Context, p Values) (map[string]any, error) {
	records := p.Records("records")
	keyFields := p.Strings("key_fields", []string{"email"})

	seen := make(map[string]struct{}, len(records))
	unique := make([]map[string]any, 0, len(records))
	duplicates := 0

	for _, record := range records {
		parts := make([]string, len(keyFields))
		for i, f := range keyFields {
			parts[i] = strings.ToLower(stringify(record[f]))
		}
		key := strings.Join(parts, "\x00")
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, record)
	}

	return map[string]any{
		"total_input":        len(records),
		"unique_records":     len(unique),
		"duplicates_removed": duplicates,
		"dedup_rate":         percent(duplicates, len(records)),
		"records":            unique,
	}, nil
}

func (d *dataEntry) parseDocument(_ context.Context, p Values) (map[string]any, error) {
	docType := p.String("document_type", "invoice")
	text := p.String("text", "")

	fields, ok := documentFields[docType]
	if !ok {
		fields = []string{"field_1", "field_2", "field_3"}
	}

	labelled := labelledValues(text)
	data := make(map[string]any, len(fields))
	found := 0
	for _, f := range fields {
		if v, ok := labelled[f]; ok {
			data[f] = v
			found++
		} else {
			data[f] = nil
		}
	}

	pages := p.Int("pages", strings.Count(text, "\f")+1)
	confidence := round2(float64(found) / float64(len(fields)))

	return map[string]any{
		"document_type":    docType,
		"pages_processed":  pages,
		"fields_extracted": found,
		"extracted_data":   data,
		"confidence_score": confidence,
		"requires_review":  confidence < 0.8,
	}, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
