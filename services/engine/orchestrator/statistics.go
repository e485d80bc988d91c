// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"sync"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

// statistics tracks task counters behind a mutex. The average duration
// is maintained incrementally: avg += (d - avg) / n with n the total
// task count, so it is always the count-weighted mean of every recorded
// task, never an average-of-averages.
type statistics struct {
	mu    sync.Mutex
	stats datatypes.Statistics
}

func (s *statistics) record(success bool, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalTasks++
	if success {
		s.stats.SuccessfulTasks++
	} else {
		s.stats.FailedTasks++
	}

	delta := d - s.stats.AvgTaskDuration
	s.stats.AvgTaskDuration += delta / time.Duration(s.stats.TotalTasks)
}

func (s *statistics) snapshot() datatypes.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
