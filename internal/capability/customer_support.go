package capability

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

var responseTemplates = parseTemplates(map[string]string{
	"billing":   "Thank you for reaching out about your billing concern. I've reviewed your account and {{.Detail}}. Please allow 3-5 business days for the adjustment to reflect.",
	"technical": "I understand you're experiencing a technical issue. I've escalated this to our engineering team with priority level {{.Priority}}. You'll receive an update within {{.ETA}}.",
	"general":   "Thank you for contacting support. I've reviewed your inquiry and {{.Detail}}. Is there anything else I can help you with?",
	"refund":    "I've processed your refund request for {{.Amount}}. You should see the credit within 5-7 business days depending on your bank.",
	"cancel":    "I've initiated the cancellation of your account as requested. You'll receive a confirmation email at {{.Email}}. Your data will be retained for 30 days.",
})

var dmTemplates = parseTemplates(map[string]string{
	"positive":   "Hi {{.CustomerName}}! Thanks for reaching out. {{.Body}} Feel free to DM us anytime!",
	"neutral":    "Hi {{.CustomerName}}, thanks for your message. {{.Body}} Let us know if you need anything else.",
	"negative":   "Hi {{.CustomerName}}, we're sorry to hear about your experience. {{.Body}} We've flagged this for our team to look into right away.",
	"frustrated": "Hi {{.CustomerName}}, we completely understand your frustration and sincerely apologize. {{.Body}} A senior team member will follow up with you shortly.",
})

var commentTemplates = parseTemplates(map[string]string{
	"positive":  "Thank you so much for the kind words, {{.CustomerName}}! We're glad you're enjoying {{.Product}}!",
	"neutral":   "{{.CustomerName}} Thanks for your comment! {{.Body}}",
	"negative":  "We're sorry about this, {{.CustomerName}}. We'd love to make it right, please DM us so we can help.",
	"complaint": "We hear you, {{.CustomerName}}, and we're taking this seriously. Our team is looking into it. We'll follow up via DM.",
})

var reviewTemplates = parseTemplates(map[string]string{
	"positive": "Thank you for the amazing review, {{.CustomerName}}! We're thrilled you had a great experience with {{.Product}}.",
	"neutral":  "Thanks for sharing your feedback, {{.CustomerName}}. We're always looking to improve and your input helps!",
	"negative": "We're sorry we didn't meet your expectations, {{.CustomerName}}. We'd like to make this right. {{.Resolution}}",
})

var issueResponses = map[string]string{
	"product_complaint": "We've logged your concern and our product team is reviewing it.",
	"shipping_delay":    "We've checked your order and it's now on its way. You should receive a tracking update soon.",
	"praise":            "That really made our day!",
	"feature_request":   "Great idea! We've passed this along to our product team.",
	"service_outage":    "Our engineering team is aware and actively working on a fix.",
	"pricing_question":  "You can find our latest pricing on our website, but we're happy to walk you through the options here too.",
	"general_inquiry":   "We're happy to help with that.",
}

var platformCharLimits = map[string]int{
	"twitter":   280,
	"tiktok":    150,
	"instagram": 2200,
	"facebook":  8000,
	"linkedin":  3000,
	"threads":   500,
}

var defaultSocialPlatforms = []string{"twitter", "instagram", "facebook", "tiktok", "linkedin", "threads"}

// sentimentLabels is ordered by precedence when keyword scores tie.
var sentimentLabels = []string{"urgent", "frustrated", "negative", "positive", "neutral"}

var sentimentKeywords = map[string][]string{
	"urgent":     {"urgent", "asap", "immediately", "emergency", "critical", "right now"},
	"frustrated": {"frustrated", "ridiculous", "unacceptable", "again", "still not", "fed up", "angry", "!!"},
	"negative":   {"bad", "terrible", "poor", "disappointed", "slow", "broken", "wrong", "worst", "hate"},
	"positive":   {"great", "love", "thanks", "thank you", "awesome", "excellent", "happy", "amazing"},
}

var priorityBySentiment = map[string]string{
	"urgent":     "CRITICAL",
	"frustrated": "HIGH",
	"negative":   "HIGH",
	"neutral":    "MEDIUM",
	"positive":   "LOW",
}

var resolutionHours = map[string]int{
	"CRITICAL": 1,
	"HIGH":     4,
	"MEDIUM":   8,
	"LOW":      24,
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"refund", []string{"refund", "money back", "reimburse"}},
	{"cancel", []string{"cancel", "unsubscribe", "close my account", "terminate"}},
	{"billing", []string{"bill", "invoice", "charge", "payment", "subscription", "pricing"}},
	{"technical", []string{"error", "bug", "crash", "broken", "not working", "login", "outage", "slow"}},
}

var issueKeywords = []struct {
	issue    string
	keywords []string
}{
	{"service_outage", []string{"down", "outage", "not loading", "can't access"}},
	{"shipping_delay", []string{"shipping", "delivery", "package", "tracking", "order"}},
	{"pricing_question", []string{"price", "pricing", "cost", "how much", "plan"}},
	{"feature_request", []string{"feature", "would be nice", "please add", "wish"}},
	{"product_complaint", []string{"broken", "doesn't work", "defect", "quality", "bad"}},
	{"praise", []string{"love", "great", "awesome", "amazing", "thanks"}},
}

var topicKeywords = map[string][]string{
	"pricing":      {"price", "pricing", "cost", "expensive", "cheap"},
	"performance":  {"slow", "fast", "lag", "performance", "speed"},
	"support":      {"support", "help", "agent", "response"},
	"features":     {"feature", "option", "setting", "integration"},
	"billing":      {"bill", "invoice", "charge", "payment"},
	"cancellation": {"cancel", "unsubscribe", "close my account"},
}

func parseTemplates(src map[string]string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(src))
	for name, text := range src {
		out[name] = template.Must(template.New(name).Parse(text))
	}
	return out
}

// templateData is the union of fields referenced by the response templates.
type templateData struct {
	CustomerName string
	Body         string
	Product      string
	Resolution   string
	Detail       string
	Priority     string
	ETA          string
	Amount       string
	Email        string
}

func render(templates map[string]*template.Template, name, fallback string, data templateData) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		tmpl = templates[fallback]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s response: %w", name, err)
	}
	return buf.String(), nil
}

// sentimentScores counts keyword hits per label and normalizes them to sum to 1.
func sentimentScores(text string) (string, map[string]float64) {
	text = strings.ToLower(text)
	hits := make(map[string]int, len(sentimentLabels))
	total := 0
	for label, keywords := range sentimentKeywords {
		for _, k := range keywords {
			if strings.Contains(text, k) {
				hits[label]++
				total++
			}
		}
	}

	scores := make(map[string]float64, len(sentimentLabels))
	best, bestHits := "neutral", 0
	for _, label := range sentimentLabels {
		if total > 0 {
			scores[label] = round2(float64(hits[label]) / float64(total))
		} else {
			scores[label] = 0
		}
		if hits[label] > bestHits {
			best, bestHits = label, hits[label]
		}
	}
	if total == 0 {
		scores["neutral"] = 1
	}
	return best, scores
}

// classificationConfidence grows with the amount of keyword evidence.
func classificationConfidence(hits int) float64 {
	c := 0.7 + 0.08*float64(hits)
	if c > 0.99 {
		c = 0.99
	}
	return round2(c)
}

type customerSupport struct {
	categories           []string
	autoResolveThreshold float64
	escalationEnabled    bool
	socialPlatforms      []string
	socialAutoReply      bool
	socialTone           string
}

func newCustomerSupport(cfg Values) *customerSupport {
	return &customerSupport{
		categories:           cfg.Strings("categories", []string{"billing", "technical", "general", "refund", "cancel"}),
		autoResolveThreshold: cfg.Float("auto_resolve_threshold", 0.85),
		escalationEnabled:    cfg.Bool("escalation_enabled", true),
		socialPlatforms:      cfg.Strings("social_platforms", defaultSocialPlatforms),
		socialAutoReply:      cfg.Bool("social_auto_reply", true),
		socialTone:           cfg.String("social_tone", "friendly"),
	}
}

func (c *customerSupport) operations() map[string]Operation {
	return map[string]Operation{
		"triage_ticket":     c.triageTicket,
		"draft_response":    c.draftResponse,
		"analyze_sentiment": c.analyzeSentiment,
		"bulk_classify":     c.bulkClassify,
		"respond_to_dm":     c.respondToDM,
		"reply_to_comment":  c.replyToComment,
		"handle_review":     c.handleReview,
		"social_monitor":    c.socialMonitor,
	}
}

// classify picks the first handled category whose keywords appear in text.
func (c *customerSupport) classify(text string) (string, int) {
	text = strings.ToLower(text)
	for _, ck := range categoryKeywords {
		if !containsString(c.categories, ck.category) {
			continue
		}
		hits := 0
		for _, k := range ck.keywords {
			if strings.Contains(text, k) {
				hits++
			}
		}
		if hits > 0 {
			return ck.category, hits
		}
	}
	if containsString(c.categories, "general") || len(c.categories) == 0 {
		return "general", 0
	}
	return c.categories[0], 0
}

func detectIssue(text string) string {
	text = strings.ToLower(text)
	for _, ik := range issueKeywords {
		if containsAny(text, ik.keywords...) {
			return ik.issue
		}
	}
	return "general_inquiry"
}

func (c *customerSupport) triageTicket(_ context.Context, p Values) (map[string]any, error) {
	text := p.String("text", "")
	tier := p.String("customer_tier", "standard")

	category, hits := c.classify(text)
	sentiment, _ := sentimentScores(text)
	confidence := classificationConfidence(hits)
	priority := priorityBySentiment[sentiment]

	if tier == "enterprise" && priority == "MEDIUM" {
		priority = "HIGH"
	}

	shouldEscalate := c.escalationEnabled &&
		(sentiment == "frustrated" || sentiment == "urgent" || confidence < c.autoResolveThreshold)

	team := "support-tier1"
	switch {
	case category == "billing":
		team = "billing-team"
	case shouldEscalate:
		team = "support-tier2"
	}

	return map[string]any{
		"ticket_id":                  p.String("ticket_id", "unknown"),
		"category":                   category,
		"sentiment":                  sentiment,
		"priority":                   priority,
		"confidence":                 confidence,
		"should_escalate":            shouldEscalate,
		"suggested_team":             team,
		"estimated_resolution_hours": resolutionHours[priority],
	}, nil
}

func (c *customerSupport) draftResponse(_ context.Context, p Values) (map[string]any, error) {
	category := p.String("category", "general")

	detail := "your request has been processed successfully"
	if category == "billing" {
		detail = "we've applied a courtesy credit of $10.00 to your account"
	}

	draft, err := render(responseTemplates, category, "general", templateData{
		Detail:   detail,
		Priority: "HIGH",
		ETA:      "2 hours",
		Amount:   p.String("amount", "$29.99"),
		Email:    p.String("email", "customer@example.com"),
	})
	if err != nil {
		return nil, err
	}

	customerName := p.String("customer_name", "")
	if customerName != "" {
		draft = "Hi " + customerName + ", " + draft
	}

	return map[string]any{
		"draft":                   draft,
		"category":                category,
		"tone":                    "professional",
		"word_count":              len(strings.Fields(draft)),
		"requires_review":         category == "refund" || category == "cancel",
		"personalization_applied": customerName != "",
	}, nil
}

func (c *customerSupport) analyzeSentiment(_ context.Context, p Values) (map[string]any, error) {
	text := p.String("text", "")
	sentiment, scores := sentimentScores(text)

	lower := strings.ToLower(text)
	topics := make([]string, 0)
	for topic, keywords := range topicKeywords {
		if containsAny(lower, keywords...) {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)

	urgency := scores["urgent"] + scores["frustrated"]/2
	if urgency > 1 {
		urgency = 1
	}

	return map[string]any{
		"sentiment":       sentiment,
		"scores":          scores,
		"urgency_score":   round2(urgency),
		"topics_detected": topics,
	}, nil
}

func (c *customerSupport) bulkClassify(_ context.Context, p Values) (map[string]any, error) {
	tickets := p.Records("tickets")
	if len(tickets) > 50 {
		tickets = tickets[:50]
	}

	results := make([]map[string]any, 0, len(tickets))
	for _, ticket := range tickets {
		text := stringify(ticket["text"])
		category, hits := c.classify(text)
		sentiment, _ := sentimentScores(text)
		results = append(results, map[string]any{
			"id":         ticket["id"],
			"category":   category,
			"priority":   priorityBySentiment[sentiment],
			"confidence": classificationConfidence(hits),
		})
	}

	return map[string]any{"classified": len(results), "results": results}, nil
}

func (c *customerSupport) respondToDM(_ context.Context, p Values) (map[string]any, error) {
	message := p.String("message", "")
	sentiment, _ := sentimentScores(message)
	if sentiment == "urgent" {
		sentiment = "frustrated"
	}
	issue := detectIssue(message)
	confidence := classificationConfidence(len(strings.Fields(message)) / 5)

	draft, err := render(dmTemplates, sentiment, "neutral", templateData{
		CustomerName: p.String("customer_name", "there"),
		Body:         issueResponses[issue],
		Product:      "our service",
	})
	if err != nil {
		return nil, err
	}

	shouldEscalate := sentiment == "frustrated" || issue == "service_outage"

	return map[string]any{
		"platform":        p.String("platform", "twitter"),
		"response_draft":  draft,
		"sentiment":       sentiment,
		"issue_type":      issue,
		"confidence":      confidence,
		"tone":            c.socialTone,
		"auto_send":       c.socialAutoReply && confidence >= c.autoResolveThreshold && !shouldEscalate,
		"should_escalate": shouldEscalate,
		"character_count": len([]rune(draft)),
		"requires_review": shouldEscalate || confidence < c.autoResolveThreshold,
	}, nil
}

func (c *customerSupport) replyToComment(_ context.Context, p Values) (map[string]any, error) {
	platform := p.String("platform", "instagram")
	comment := p.String("comment", "")

	sentiment, _ := sentimentScores(comment)
	switch sentiment {
	case "urgent", "frustrated":
		sentiment = "complaint"
	}
	confidence := classificationConfidence(len(strings.Fields(comment)) / 5)

	draft, err := render(commentTemplates, sentiment, "neutral", templateData{
		CustomerName: "@" + p.String("customer_name", "there"),
		Body:         "We appreciate you taking the time to share this.",
		Product:      p.String("product", "our product"),
	})
	if err != nil {
		return nil, err
	}

	limit, ok := platformCharLimits[platform]
	if !ok {
		limit = 2200
	}
	runes := []rune(draft)
	truncated := len(runes) > limit
	if truncated {
		draft = string(runes[:limit-3]) + "..."
	}

	needsFollowup := sentiment == "negative" || sentiment == "complaint"

	return map[string]any{
		"platform":            platform,
		"reply_draft":         draft,
		"sentiment":           sentiment,
		"is_public":           true,
		"confidence":          confidence,
		"character_count":     len([]rune(draft)),
		"character_limit":     limit,
		"truncated":           truncated,
		"suggest_dm_followup": needsFollowup,
		"requires_review":     needsFollowup || confidence < c.autoResolveThreshold,
	}, nil
}

func (c *customerSupport) handleReview(_ context.Context, p Values) (map[string]any, error) {
	rating := p.Int("rating", 0)
	if rating == 0 {
		// Infer a rating from the review text when none is supplied.
		switch sentiment, _ := sentimentScores(p.String("review", "")); sentiment {
		case "positive":
			rating = 5
		case "neutral":
			rating = 3
		default:
			rating = 2
		}
	}

	sentiment := "negative"
	followUp := "offer_resolution"
	switch {
	case rating >= 4:
		sentiment, followUp = "positive", "thank_customer"
	case rating == 3:
		sentiment, followUp = "neutral", "acknowledge"
	}

	draft, err := render(reviewTemplates, sentiment, "neutral", templateData{
		CustomerName: p.String("customer_name", "Valued Customer"),
		Product:      p.String("product", "our service"),
		Resolution:   "Please reach out to us directly and we'll make it right.",
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"platform":         p.String("platform", "google"),
		"star_rating":      rating,
		"sentiment":        sentiment,
		"response_draft":   draft,
		"tone":             c.socialTone,
		"word_count":       len(strings.Fields(draft)),
		"should_escalate":  rating <= 2,
		"follow_up_action": followUp,
		"requires_review":  rating <= 2,
	}, nil
}

func (c *customerSupport) socialMonitor(_ context.Context, p Values) (map[string]any, error) {
	platforms := p.Strings("platforms", c.socialPlatforms)
	brand := p.String("brand_name", "OurBrand")
	raw := p.Records("mentions")

	mentions := make([]map[string]any, 0, len(raw))
	sentimentBreakdown := map[string]int{}
	platformBreakdown := map[string]int{}
	urgent, needsResponse := 0, 0

	for i, m := range raw {
		mention := Values(m)
		platform := mention.String("platform", "")
		if platform == "" && len(platforms) > 0 {
			platform = platforms[0]
		}
		if !containsString(platforms, platform) {
			continue
		}

		text := mention.String("text", "")
		sentiment, _ := sentimentScores(text)
		priority := priorityBySentiment[sentiment]
		requiresResponse := sentiment != "positive" || strings.Contains(text, "?")

		if priority == "HIGH" || priority == "CRITICAL" {
			urgent++
		}
		if requiresResponse {
			needsResponse++
		}
		sentimentBreakdown[sentiment]++
		platformBreakdown[platform]++

		mentions = append(mentions, map[string]any{
			"id":                mention.String("id", fmt.Sprintf("mention-%d", i+1)),
			"platform":          platform,
			"type":              mention.String("type", "mention"),
			"sentiment":         sentiment,
			"priority":          priority,
			"issue_type":        detectIssue(text),
			"requires_response": requiresResponse,
			"snippet":           truncate(text, 120),
		})
	}

	dominant := "neutral"
	best := 0
	for _, label := range sentimentLabels {
		if sentimentBreakdown[label] > best {
			dominant, best = label, sentimentBreakdown[label]
		}
	}

	top := mentions
	if len(top) > 20 {
		top = top[:20]
	}

	return map[string]any{
		"brand_name":          brand,
		"time_window_hours":   p.Int("time_window_hours", 24),
		"total_mentions":      len(mentions),
		"urgent_mentions":     urgent,
		"needs_response":      needsResponse,
		"sentiment_breakdown": sentimentBreakdown,
		"platform_breakdown":  platformBreakdown,
		"mentions":            top,
		"recommended_actions": []string{
			fmt.Sprintf("Respond to %d urgent mentions immediately", urgent),
			fmt.Sprintf("%d mentions require a reply", needsResponse),
			fmt.Sprintf("Overall brand sentiment is mostly %s", dominant),
		},
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
