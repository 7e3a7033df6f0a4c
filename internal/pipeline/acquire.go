package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// EmailSource is the mail-retrieval collaborator.
type EmailSource interface {
	Fetch(ctx context.Context, folder string, since, until time.Time) ([]models.RawEmail, error)
}

// AcquireParams describes one acquisition pass.
type AcquireParams struct {
	Folders       []string
	Since         time.Time
	Until         time.Time
	SubjectFilter string
	SenderFilter  string
}

// Acquirer fetches candidate emails, applies the subject/sender filters, and
// drops emails already seen this run. A fetch failure in one folder is
// recorded and acquisition continues with the remaining folders.
type Acquirer struct {
	source EmailSource
	logger *slog.Logger
}

// NewAcquirer creates a new email acquirer
func NewAcquirer(source EmailSource, logger *slog.Logger) *Acquirer {
	return &Acquirer{source: source, logger: logger.With("component", "acquire")}
}

// Acquire returns the not-yet-seen emails matching p. Every returned email's
// id is added to seen before this call returns, so a crash mid-extraction
// cannot cause the same email to loop forever.
func (a *Acquirer) Acquire(ctx context.Context, p AcquireParams, seen map[string]struct{}, stats *models.RunStats) []models.RawEmail {
	var fresh []models.RawEmail

	for _, folder := range p.Folders {
		emails, err := a.source.Fetch(ctx, folder, p.Since, p.Until)
		if err != nil {
			msg := fmt.Sprintf("error fetching emails from folder %s: %v", folder, err)
			a.logger.Error("fetch failed", "folder", folder, "error", err)
			stats.RecordError(msg)
			continue
		}

		matched := 0
		for _, raw := range emails {
			if !matchesFilters(&raw, p.SubjectFilter, p.SenderFilter) {
				continue
			}
			matched++
			if _, ok := seen[raw.ID]; ok {
				continue
			}
			seen[raw.ID] = struct{}{}
			fresh = append(fresh, raw)
		}

		a.logger.Info("folder checked",
			"folder", folder,
			"fetched", len(emails),
			"matched", matched,
			"new", len(fresh))
	}

	return fresh
}

// matchesFilters applies the configured filters. Sender filtering is an exact
// case-insensitive substring match; subject filtering is a fuzzy keyword
// match. When both filters are set, either matching is sufficient.
func matchesFilters(raw *models.RawEmail, subjectFilter, senderFilter string) bool {
	if subjectFilter == "" && senderFilter == "" {
		return true
	}

	if senderFilter != "" &&
		strings.Contains(strings.ToLower(raw.Sender), strings.ToLower(senderFilter)) {
		return true
	}

	if subjectFilter != "" && subjectSimilarity(raw.Subject, subjectFilter) >= 0.5 {
		return true
	}

	return false
}

var wordRegex = regexp.MustCompile(`[A-Za-z]+`)

// Stopwords dropped before comparing subject keywords. Includes the reply and
// forward markers mail clients prepend.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "from": {}, "fw": {}, "fwd": {},
	"in": {}, "is": {}, "of": {}, "on": {}, "or": {}, "re": {}, "the": {},
	"to": {}, "your": {},
}

// subjectSimilarity returns the similarity ratio between the keyword
// sequences of two subjects: 2*matches/total, with matches counted on the
// longest common subsequence of keywords.
func subjectSimilarity(subject, filter string) float64 {
	a := keywords(subject)
	b := keywords(filter)
	if len(b) == 0 {
		// A filter with no usable keywords cannot reject anything
		return 1
	}
	if len(a) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(a, b)
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

func keywords(s string) []string {
	var words []string
	for _, w := range wordRegex.FindAllString(strings.ToLower(s), -1) {
		if _, ok := stopwords[w]; ok {
			continue
		}
		words = append(words, w)
	}
	return words
}

func longestCommonSubsequence(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
