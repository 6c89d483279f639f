package expand

import (
	"log/slog"
	"strconv"

	"github.com/coraxsearch/corax/internal/config"
	"github.com/coraxsearch/corax/internal/pipeline"
)

// Request controls recognized by query expansion. Each overrides the
// corresponding process-wide configuration value for one request.
const (
	// CtrlFeedbackDocs overrides the number of feedback documents.
	CtrlFeedbackDocs = "qe_fb_docs"

	// CtrlFeedbackTerms overrides the number of expansion terms. Zero
	// selects conservative expansion.
	CtrlFeedbackTerms = "qe_fb_terms"

	// CtrlModel overrides the expansion model name.
	CtrlModel = "qemodel"

	// CtrlScoreCutoff overrides the score-cutoff selector's ratio.
	CtrlScoreCutoff = "qe_score_cutoff"

	// CtrlSkipSecondPass disables the second matching pass for one
	// request when set to "true".
	CtrlSkipSecondPass = "qe_no_2nd_matching"

	// CtrlExpandedQuery receives the serialized rewritten query after
	// a successful expansion, for observability and reproducibility.
	CtrlExpandedQuery = "qe.expanded_query"
)

// Settings are the two effective integers of one expansion call,
// resolved from request controls falling back to process defaults.
type Settings struct {
	// Documents is the feedback document count.
	Documents int

	// Terms is the maximum number of added expansion terms.
	Terms int
}

// SettingsFromRequest resolves the effective expansion settings for a
// request. Unparseable control values are ignored in favor of the
// defaults, with a warning.
func SettingsFromRequest(rq *pipeline.Request, defaults config.ExpansionConfig) Settings {
	s := Settings{
		Documents: defaults.Documents,
		Terms:     defaults.Terms,
	}
	if v, ok := rq.Control(CtrlFeedbackDocs); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.Documents = n
		} else {
			slog.Warn("ignoring invalid control", slog.String("control", CtrlFeedbackDocs), slog.String("value", v))
		}
	}
	if v, ok := rq.Control(CtrlFeedbackTerms); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.Terms = n
		} else {
			slog.Warn("ignoring invalid control", slog.String("control", CtrlFeedbackTerms), slog.String("value", v))
		}
	}
	return s
}
