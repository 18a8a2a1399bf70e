// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
)

// Classify decides how a response is rendered.
//
// Precedence: data, then count, then summary, then plain text.
func Classify(resp *query.Response) model.DisplayKind {
	switch {
	case resp == nil:
		return model.KindText
	case resp.HasData():
		return model.KindTable
	case resp.HasCount():
		return model.KindCount
	case resp.HasSummary():
		return model.KindSummary
	default:
		return model.KindText
	}
}
