// Package wizard holds the import session's review state machine. A State is
// an immutable snapshot; every operation is a pure function from (state,
// action) to a new state. Nothing is mutated in place, which keeps undo and
// stale-async handling trivial: the session holds exactly one current
// snapshot and replaces it atomically.
package wizard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/validate"
)

// Step is the wizard's position.
type Step string

const (
	StepUpload  Step = "upload"
	StepMapping Step = "mapping"
	StepReview  Step = "review"
	StepCommit  Step = "commit"
)

var stepOrder = []Step{StepUpload, StepMapping, StepReview, StepCommit}

// State is one snapshot of an import session.
type State struct {
	Step     Step
	FileName string

	Table       *sniffer.RawTable
	Mapping     *mapping.ImportMapping
	ParseConfig sniffer.ParseConfig
	AccountID   uuid.UUID

	Drafts []activity.Draft

	// Duplicates maps idempotency key to the existing activity id the ledger
	// reported.
	Duplicates map[string]string

	Result *activity.ImportResult

	// Generation counts wholesale draft-set replacements. Async results
	// (duplicate checks, backend verdicts) are stamped with the generation
	// they were computed against; a merge whose stamp is stale is a no-op.
	Generation uint64
}

// NewState starts a session at the upload step for a default account.
func NewState(accountID uuid.UUID) State {
	return State{
		Step:        StepUpload,
		AccountID:   accountID,
		ParseConfig: sniffer.DefaultParseConfig(),
		Duplicates:  map[string]string{},
	}
}

// Next advances one step, saturating at commit.
func (s State) Next() State {
	for i, step := range stepOrder {
		if step == s.Step && i+1 < len(stepOrder) {
			s.Step = stepOrder[i+1]
			break
		}
	}
	return s
}

// Back retreats one step, saturating at upload.
func (s State) Back() State {
	for i, step := range stepOrder {
		if step == s.Step && i > 0 {
			s.Step = stepOrder[i-1]
			break
		}
	}
	return s
}

// WithTable installs a freshly parsed table and clears everything derived
// from the previous one. Changing the file or parse config always lands here.
func (s State) WithTable(fileName string, table *sniffer.RawTable, cfg sniffer.ParseConfig) State {
	s.FileName = fileName
	s.Table = table
	s.ParseConfig = cfg
	s.Drafts = nil
	s.Duplicates = map[string]string{}
	s.Result = nil
	s.Generation++
	return s
}

// ReplaceDrafts swaps in a new draft set and bumps the generation so any
// in-flight async result against the old set gets discarded on arrival.
func (s State) ReplaceDrafts(drafts []activity.Draft) State {
	s.Drafts = drafts
	s.Generation++
	return s
}

// WithDuplicates records the ledger's duplicate verdicts without bumping the
// generation: the draft set is the same set the check ran against.
func (s State) WithDuplicates(drafts []activity.Draft, duplicates map[string]string) State {
	s.Drafts = drafts
	s.Duplicates = duplicates
	return s
}

// WithResult records the commit outcome.
func (s State) WithResult(result *activity.ImportResult) State {
	s.Result = result
	return s
}

// DraftPatch is a partial draft update. Nil fields are left untouched.
type DraftPatch struct {
	Date      *time.Time       `json:"date,omitempty"`
	Type      *activity.Type   `json:"activity_type,omitempty"`
	Subtype   *string          `json:"subtype,omitempty"`
	Symbol    *string          `json:"symbol,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	FeeAmount *decimal.Decimal `json:"fee,omitempty"`
	Currency  *string          `json:"currency,omitempty"`
	FxRate    *decimal.Decimal `json:"fx_rate,omitempty"`
	AccountID *uuid.UUID       `json:"account_id,omitempty"`
	Comment   *string          `json:"comment,omitempty"`
}

func (p DraftPatch) apply(d *activity.Draft) {
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Subtype != nil {
		d.Subtype = *p.Subtype
	}
	if p.Symbol != nil {
		d.Symbol = *p.Symbol
	}
	if p.Quantity != nil {
		d.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		d.UnitPrice = *p.UnitPrice
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.FeeAmount != nil {
		d.FeeAmount = *p.FeeAmount
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
	}
	if p.FxRate != nil {
		d.FxRate = *p.FxRate
	}
	if p.AccountID != nil {
		d.AccountID = *p.AccountID
	}
	if p.Comment != nil {
		d.Comment = *p.Comment
	}
}

// UpdateDraft applies a patch to one draft and re-validates it. Skipped and
// duplicate rows take the edit but keep their sticky status until explicitly
// unskipped.
func (s State) UpdateDraft(rowIndex int, patch DraftPatch) State {
	return s.BulkUpdate([]int{rowIndex}, patch)
}

// BulkUpdate applies the same patch to many rows in one transition. Used for
// "set currency for selected" and "set account for selected".
func (s State) BulkUpdate(rowIndexes []int, patch DraftPatch) State {
	return s.mutate(rowIndexes, func(d *activity.Draft) {
		patch.apply(d)
		d.IsEdited = true
		validate.Revalidate(d)
	})
}

// Skip marks rows as skipped. Skipped rows keep their content but leave the
// commit set and stop revalidating.
func (s State) Skip(rowIndexes []int) State {
	return s.mutate(rowIndexes, func(d *activity.Draft) {
		d.Status = activity.StatusSkipped
	})
}

// Unskip lifts a sticky status (skipped or duplicate) and re-validates the
// row from its current field values. DuplicateOfID survives for display; the
// user is knowingly re-including a duplicate.
func (s State) Unskip(rowIndexes []int) State {
	return s.mutate(rowIndexes, func(d *activity.Draft) {
		d.Status = ""
		validate.Revalidate(d)
	})
}

// mutate clones the draft slice, applies fn to the selected rows, and
// returns the new state. Unselected rows share no message maps with the old
// state either; Clone is deep.
func (s State) mutate(rowIndexes []int, fn func(*activity.Draft)) State {
	selected := make(map[int]bool, len(rowIndexes))
	for _, idx := range rowIndexes {
		selected[idx] = true
	}

	drafts := make([]activity.Draft, len(s.Drafts))
	for i, d := range s.Drafts {
		drafts[i] = d.Clone()
		if selected[d.RowIndex] {
			fn(&drafts[i])
		}
	}
	s.Drafts = drafts
	return s
}

// Verdict is one backend validation result, keyed by 1-based line number
// over the draft slice the dry-run was built from.
type Verdict struct {
	LineNumber  int
	Valid       bool
	Errors      activity.FieldMessages
	SymbolName  string
	ExchangeMic string
}

// MergeVerdicts unions backend verdicts into the drafts. The generation
// stamp must match the current state; a stale merge returns the state
// unchanged. Backend errors union into the local error map, a row marked
// invalid with no field detail gets a general error so it is never invalid
// for no visible reason, and rows without a verdict keep their local status.
func (s State) MergeVerdicts(generation uint64, verdicts []Verdict) State {
	if generation != s.Generation {
		return s
	}

	byLine := make(map[int]Verdict, len(verdicts))
	for _, v := range verdicts {
		byLine[v.LineNumber] = v
	}

	drafts := make([]activity.Draft, len(s.Drafts))
	for i, d := range s.Drafts {
		drafts[i] = d.Clone()
		v, ok := byLine[i+1]
		if !ok {
			continue
		}

		out := &drafts[i]
		if out.Errors == nil {
			out.Errors = make(activity.FieldMessages)
		}
		out.Errors.Merge(v.Errors)
		if !v.Valid && len(out.Errors) == 0 {
			out.Errors.Add("general", "rejected by backend validation")
		}
		if v.SymbolName != "" {
			out.SymbolName = v.SymbolName
		}
		if v.ExchangeMic != "" {
			out.ExchangeMic = v.ExchangeMic
		}

		if out.Status == activity.StatusSkipped || out.Status == activity.StatusDuplicate {
			continue
		}
		switch {
		case len(out.Errors) > 0:
			out.Status = activity.StatusError
		case len(out.Warnings) > 0:
			out.Status = activity.StatusWarning
		default:
			out.Status = activity.StatusValid
		}
	}
	s.Drafts = drafts
	return s
}

// CommitSet returns the drafts that belong in the commit by default: valid
// and warning rows. Errors, duplicates and skips stay behind unless the user
// unskipped them first.
func (s State) CommitSet() []activity.Draft {
	var out []activity.Draft
	for _, d := range s.Drafts {
		if d.Committable() {
			out = append(out, d.Clone())
		}
	}
	return out
}

// StatusCounts tallies drafts per status for the review summary.
func (s State) StatusCounts() map[activity.Status]int {
	counts := make(map[activity.Status]int, 5)
	for _, d := range s.Drafts {
		counts[d.Status]++
	}
	return counts
}
