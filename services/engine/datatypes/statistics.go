// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// Statistics is a point-in-time snapshot of the orchestrator's task
// counters. Counters are monotonic; AvgTaskDuration is a count-weighted
// incremental mean over every recorded task (never an
// average-of-averages).
type Statistics struct {
	TotalTasks      int64         `json:"total_tasks"`
	SuccessfulTasks int64         `json:"successful_tasks"`
	FailedTasks     int64         `json:"failed_tasks"`
	AvgTaskDuration time.Duration `json:"avg_task_duration"`
}
