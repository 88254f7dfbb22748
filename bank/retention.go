/*
retention.go - Debounced audit retention sweep and the operator audit surface

The sweep runs opportunistically at the tail of withdrawal flows, never on a
dedicated timer: best-effort, debounced housekeeping rather than a hard
guarantee of prompt deletion.
*/
package bank

import (
	"context"
	"log"
)

// maybeSweep deletes audit records older than the retention window, at most
// once per cleanup interval. No-op while auditing is disabled.
func (s *Service) maybeSweep(ctx context.Context) {
	if !s.cfg.AuditEnabled {
		return
	}
	now := s.now()
	s.sweepMu.Lock()
	if !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < s.cfg.AuditCleanupInterval {
		s.sweepMu.Unlock()
		return
	}
	s.lastSweep = now
	s.sweepMu.Unlock()

	cutoff := now.Add(-s.cfg.AuditRetention).Unix()
	if _, err := s.store.DeleteAuditBefore(ctx, cutoff); err != nil {
		// Best effort; the next eligible withdrawal retries.
		log.Printf("reagent bank: audit sweep failed: %v", err)
	}
}

// =============================================================================
// OPERATOR SURFACE
// =============================================================================

// MoverReport is one top-movement row with its display name resolved.
type MoverReport struct {
	ItemID   uint32
	Name     string
	Category Category
	Net      int64
}

// AuditReport is the operator audit summary: per-action aggregates, top
// movers by absolute net movement, and one page of raw events newest-first.
type AuditReport struct {
	Totals      []ActionTotals
	TopMovers   []MoverReport
	Events      []AuditRecord
	TotalEvents uint64
	Page        int
	PageSize    int
}

const (
	defaultTopN     = 5
	maxTopN         = 50
	defaultPageSize = 20
	maxPageSize     = 200
)

// AuditSummary builds the operator report for one account (optionally
// narrowed to one character). Out-of-range paging arguments are clamped, not
// rejected.
func (s *Service) AuditSummary(ctx context.Context, q AuditQuery, topN, page, pageSize int) (AuditReport, error) {
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > maxTopN {
		topN = maxTopN
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	totals, err := s.store.AuditTotals(ctx, q)
	if err != nil {
		return AuditReport{}, persistence(err)
	}
	movers, err := s.store.TopMovers(ctx, q, topN)
	if err != nil {
		return AuditReport{}, persistence(err)
	}
	events, totalRows, err := s.store.AuditEvents(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return AuditReport{}, persistence(err)
	}

	report := AuditReport{
		Totals:      totals,
		Events:      events,
		TotalEvents: totalRows,
		Page:        page,
		PageSize:    pageSize,
	}
	for _, m := range movers {
		var name string
		if info, ok := s.Item(m.ItemID); ok {
			name = info.Name
		}
		report.TopMovers = append(report.TopMovers, MoverReport{
			ItemID:   m.ItemID,
			Name:     name,
			Category: m.Category,
			Net:      m.Net,
		})
	}
	return report, nil
}

// PurgeAudit deletes an account's audit rows, optionally only those older
// than olderThanSeconds. Returns the number of rows deleted.
func (s *Service) PurgeAudit(ctx context.Context, q AuditQuery, olderThanSeconds int64) (int64, error) {
	var cutoff int64
	if olderThanSeconds > 0 {
		cutoff = s.now().Unix() - olderThanSeconds
	}
	n, err := s.store.PurgeAudit(ctx, q, cutoff)
	if err != nil {
		return 0, persistence(err)
	}
	return n, nil
}
