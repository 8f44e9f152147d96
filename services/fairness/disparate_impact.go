// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fairness computes group-fairness metrics over recorded loan
// decisions.
//
// The only metric implemented is the disparate impact ratio: the
// favorable-outcome rate of an unprivileged group divided by that of a
// privileged group. The computation is read-only against the record
// store.
package fairness

import (
	"context"
	"fmt"
)

// GroupCounts is the read-only view of the record store the metric
// engine needs. *record.Store satisfies it.
type GroupCounts interface {
	CountByGroup(ctx context.Context, group string) (int, error)
	CountApprovedByGroup(ctx context.Context, group string) (int, error)
}

// DisparateImpact returns rate(unprivileged) / rate(privileged) where
// rate(g) is the approved fraction of applications in group g.
//
// Zero-data policy: a group with no applications has rate 0, and a zero
// privileged rate yields ratio 0. Neither case is an error, so callers
// must treat 0 as ambiguous between "no impact" and "no data".
func DisparateImpact(ctx context.Context, counts GroupCounts, privileged, unprivileged string) (float64, error) {
	totalPriv, err := counts.CountByGroup(ctx, privileged)
	if err != nil {
		return 0, fmt.Errorf("count group %q: %w", privileged, err)
	}
	totalUnpriv, err := counts.CountByGroup(ctx, unprivileged)
	if err != nil {
		return 0, fmt.Errorf("count group %q: %w", unprivileged, err)
	}
	approvedPriv, err := counts.CountApprovedByGroup(ctx, privileged)
	if err != nil {
		return 0, fmt.Errorf("count approved in group %q: %w", privileged, err)
	}
	approvedUnpriv, err := counts.CountApprovedByGroup(ctx, unprivileged)
	if err != nil {
		return 0, fmt.Errorf("count approved in group %q: %w", unprivileged, err)
	}

	ratePriv := rate(approvedPriv, totalPriv)
	rateUnpriv := rate(approvedUnpriv, totalUnpriv)
	if ratePriv == 0 {
		return 0, nil
	}
	return rateUnpriv / ratePriv, nil
}

func rate(approved, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(approved) / float64(total)
}
