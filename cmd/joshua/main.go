// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command joshua assesses global nuclear risk from a set of scored
// factors and expresses it in seconds to midnight.
//
// Usage:
//
//	joshua assess --factors factors.yaml
//	joshua assess --factors factors.yaml --history history.yaml --json
//	joshua trend --history history.yaml
//	joshua backtest --events events.yaml
//
// Factor fixtures are yaml lists of category/name/value/confidence
// entries; history fixtures are yaml lists of past scores in
// chronological order.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
